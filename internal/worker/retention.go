package worker

import (
	"context"
	"log/slog"
	"time"

	"collabsphere.app/server/common/logger"
	"collabsphere.app/server/internal/store"
)

type RetentionConfig struct {
	// Window is how far back the event log is kept for replay. Clients
	// whose cursor is older than the window must snapshot instead.
	Window time.Duration
	// Interval is how often pruning runs.
	Interval time.Duration
}

// RetentionSweeper prunes events that fell out of the replay window. The
// event log would otherwise grow without bound; workspace content (tasks,
// messages, leaderboard) is durable state and never pruned here.
type RetentionSweeper struct {
	events store.EventStore
	cfg    RetentionConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRetentionSweeper(events store.EventStore, cfg RetentionConfig) *RetentionSweeper {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	return &RetentionSweeper{
		events:    events,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run prunes on an interval. Blocks until Stop() is called or ctx is
// cancelled.
func (r *RetentionSweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "collab.worker.retention",
	})
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "retention sweeper started",
		"window", r.cfg.Window, "interval", r.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "retention sweeper stopping")
			return
		case <-ticker.C:
			r.prune(ctx)
		}
	}
}

func (r *RetentionSweeper) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *RetentionSweeper) prune(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.Window)

	pruned, err := r.events.DeleteBefore(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "event pruning failed", "error", err)
		return
	}
	if pruned > 0 {
		slog.InfoContext(ctx, "pruned events outside replay window",
			"pruned", pruned, "cutoff", cutoff)
	}
}
