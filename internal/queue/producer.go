package queue

import (
	"context"
	"fmt"
	"log/slog"

	"collabsphere.app/server/internal/model"
	"github.com/redis/go-redis/v9"
)

// Publisher forwards committed events to peer instances. A nil-safe no-op
// implementation backs single-instance deployments.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
	Close() error
}

type redisPublisher struct {
	client *redis.Client
	stream string
	origin string
}

// NewRedisPublisher writes committed events to a redis stream so other
// instances can fan them out to their own subscribers. origin identifies
// this instance; consumers skip events they produced themselves.
func NewRedisPublisher(client *redis.Client, stream, origin string) Publisher {
	return &redisPublisher{
		client: client,
		stream: stream,
		origin: origin,
	}
}

func (p *redisPublisher) Publish(ctx context.Context, ev model.Event) error {
	fields := map[string]any{
		"workspace_id": ev.WorkspaceID,
		"seq":          ev.Seq,
		"kind":         string(ev.Kind),
		"payload":      string(ev.Payload),
		"created_at":   ev.CreatedAt.UnixMilli(),
		"origin":       p.origin,
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("publishing event to relay stream: %w", err)
	}

	slog.DebugContext(ctx, "event relayed",
		"workspace_id", ev.WorkspaceID, "seq", ev.Seq, "kind", ev.Kind)
	return nil
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that does nothing; used when no
// redis relay is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, model.Event) error { return nil }
func (noopPublisher) Close() error                               { return nil }
