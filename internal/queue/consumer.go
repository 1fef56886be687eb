package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"collabsphere.app/server/common/logger"
	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/model"
	"github.com/redis/go-redis/v9"
)

type RelayConfig struct {
	Stream    string        // redis stream carrying relayed events
	Group     string        // per-instance consumer group so every instance sees every event
	Consumer  string        // consumer name within the group
	Origin    string        // this instance's identity; its own events are skipped
	BatchSize int64         // events read per XREADGROUP call
	Block     time.Duration // poll timeout for new entries
}

// Relay reads events published by peer instances off the redis stream and
// feeds them into the local bus. Sequence-number dedupe and gap filling in
// the bus make redelivery and reordering harmless.
type Relay struct {
	client *redis.Client
	cfg    RelayConfig
	bus    *bus.Bus

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRelay(client *redis.Client, cfg RelayConfig, b *bus.Bus) (*Relay, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	r := &Relay{
		client:    client,
		cfg:       cfg,
		bus:       b,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	if err := r.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}
	return r, nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	// Each instance owns its group, so the stream behaves as a broadcast:
	// starting from "$" because events before this instance existed are
	// served by replay from the store, not the relay.
	err := r.client.XGroupCreateMkStream(ctx, r.cfg.Stream, r.cfg.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating relay consumer group: %w", err)
	}
	return nil
}

// Run consumes relayed events until Stop is called or ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "collab.queue.relay",
	})
	defer close(r.stoppedCh)

	slog.InfoContext(ctx, "event relay started",
		"stream", r.cfg.Stream, "group", r.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "event relay stopping")
			return
		default:
			if err := r.readBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "relay read error", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (r *Relay) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *Relay) readBatch(ctx context.Context) error {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		Streams:  []string{r.cfg.Stream, ">"},
		Count:    r.cfg.BatchSize,
		Block:    r.cfg.Block,
	}).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("reading relay stream: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			r.handle(ctx, msg)
			if err := r.client.XAck(ctx, r.cfg.Stream, r.cfg.Group, msg.ID).Err(); err != nil {
				slog.WarnContext(ctx, "failed to ack relay message",
					"message_id", msg.ID, "error", err)
			}
		}
	}
	return nil
}

func (r *Relay) handle(ctx context.Context, msg redis.XMessage) {
	ev, origin, err := parseEvent(msg)
	if err != nil {
		slog.WarnContext(ctx, "skipping malformed relay message",
			"message_id", msg.ID, "error", err)
		return
	}
	if origin == r.cfg.Origin {
		return // published locally already
	}
	r.bus.Publish(ctx, ev)
}

func parseEvent(msg redis.XMessage) (model.Event, string, error) {
	var ev model.Event

	workspaceID, err := fieldInt64(msg, "workspace_id")
	if err != nil {
		return ev, "", err
	}
	seq, err := fieldInt64(msg, "seq")
	if err != nil {
		return ev, "", err
	}
	kind, _ := msg.Values["kind"].(string)
	if !model.EventKind(kind).Valid() {
		return ev, "", fmt.Errorf("unknown event kind %q", kind)
	}
	payload, _ := msg.Values["payload"].(string)
	createdAt, err := fieldInt64(msg, "created_at")
	if err != nil {
		return ev, "", err
	}
	origin, _ := msg.Values["origin"].(string)

	ev = model.Event{
		WorkspaceID: workspaceID,
		Seq:         seq,
		Kind:        model.EventKind(kind),
		Payload:     json.RawMessage(payload),
		CreatedAt:   time.UnixMilli(createdAt),
	}
	return ev, origin, nil
}

func fieldInt64(msg redis.XMessage, key string) (int64, error) {
	raw, ok := msg.Values[key].(string)
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing field %q: %w", key, err)
	}
	return v, nil
}
