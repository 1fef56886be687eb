package bus

import (
	"context"
	"log/slog"
	"sync"

	"collabsphere.app/server/common/logger"
	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/model"
)

// EventSource reads stored events for subscription replay. Satisfied by
// store.EventStore.
type EventSource interface {
	ListSince(ctx context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error)
}

type Config struct {
	// BufferSize bounds the per-subscriber backlog of undelivered events.
	// A subscriber that falls further behind is dropped and must resync.
	BufferSize int
	// ReplayPage is the page size for reading stored events during replay.
	ReplayPage int32
}

// Bus fans appended events out to workspace subscribers. Each subscriber
// receives events in sequence order with no gaps and no duplicates; the
// replay phase covers everything committed before the subscription and the
// live phase everything after, with overlap suppressed by sequence number.
type Bus struct {
	source EventSource
	cfg    Config

	mu   sync.Mutex
	subs map[int64]map[*Subscription]struct{}
}

func New(source EventSource, cfg Config) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.ReplayPage <= 0 {
		cfg.ReplayPage = 500
	}
	return &Bus{
		source: source,
		cfg:    cfg,
		subs:   make(map[int64]map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber for a workspace and starts delivery:
// stored events with seq > fromSeq first, then live events, in order.
// The subscription ends when ctx is cancelled, Close is called, or the
// subscriber overflows its buffer.
func (b *Bus) Subscribe(ctx context.Context, workspaceID, fromSeq int64) *Subscription {
	sub := newSubscription(b, workspaceID, fromSeq, b.cfg.BufferSize)

	// Register before replay so no live event published during replay is
	// missed; duplicates across the two phases are dropped by seq.
	b.mu.Lock()
	if b.subs[workspaceID] == nil {
		b.subs[workspaceID] = make(map[*Subscription]struct{})
	}
	b.subs[workspaceID][sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(ctx, b)
	return sub
}

// Publish delivers a committed event to every current subscriber of its
// workspace. Must be called only after the append is durable. Subscribers
// whose buffer is full are dropped; everyone else is unaffected.
func (b *Bus) Publish(ctx context.Context, ev model.Event) {
	var overflowed []*Subscription

	b.mu.Lock()
	for sub := range b.subs[ev.WorkspaceID] {
		if !sub.enqueue(ev) {
			overflowed = append(overflowed, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range overflowed {
		ctx := logger.WithLogFields(ctx, logger.LogFields{
			WorkspaceID: logger.Ptr(ev.WorkspaceID),
			Component:   "collab.bus",
		})
		slog.WarnContext(ctx, "subscriber buffer overflow, dropping subscriber",
			"seq", ev.Seq, "buffer", b.cfg.BufferSize)
		b.remove(sub)
		sub.fail(apperr.Newf(apperr.KindOverflow,
			"subscriber exceeded buffer of %d events, resync required", b.cfg.BufferSize))
	}
}

// SubscriberCount reports the current number of subscribers for a
// workspace. Used for observability and tests.
func (b *Bus) SubscriberCount(workspaceID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[workspaceID])
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.workspaceID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.workspaceID)
		}
	}
}
