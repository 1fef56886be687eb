package store

import (
	"context"
	"encoding/json"
	"time"

	"collabsphere.app/server/internal/model"
)

// WorkspaceStore defines the contract for workspace data access.
type WorkspaceStore interface {
	Create(ctx context.Context, ws *model.Workspace) error
	GetByID(ctx context.Context, id int64) (*model.Workspace, error)
	GetBySlug(ctx context.Context, slug string) (*model.Workspace, error)
	List(ctx context.Context) ([]model.Workspace, error)
	Archive(ctx context.Context, id int64, at time.Time) error
}

// NoteStore defines the contract for workspace note access. Update applies
// optimistic concurrency: the write succeeds only when expectedVersion
// matches the stored version.
type NoteStore interface {
	Create(ctx context.Context, workspaceID int64) error
	Get(ctx context.Context, workspaceID int64) (*model.Note, error)
	Update(ctx context.Context, workspaceID int64, content string, expectedVersion int64) (*model.Note, error)
}

// TaskStore defines the contract for task data access. Complete enforces
// the one-way pending → completed transition.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, workspaceID, taskID int64) (*model.Task, error)
	Complete(ctx context.Context, workspaceID, taskID int64, at time.Time) (*model.Task, error)
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Task, error)
}

// MessageStore defines the contract for chat message data access. Create
// assigns the next per-workspace monotonic message ID; callers must hold
// the workspace's mutation lock.
type MessageStore interface {
	Create(ctx context.Context, msg *model.ChatMessage) error
	ListRecent(ctx context.Context, workspaceID int64, limit int32) ([]model.ChatMessage, error)
}

// LeaderboardStore defines the contract for leaderboard access.
type LeaderboardStore interface {
	AddPoints(ctx context.Context, workspaceID int64, displayName string, amount int64) (*model.LeaderboardEntry, error)
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.LeaderboardEntry, error)
}

// EventStore defines the contract for the durable per-workspace event log.
// Append assigns seq = last + 1 and must run in the same transaction as the
// mutation that produced the event, under the workspace's mutation lock,
// so sequences stay gapless.
type EventStore interface {
	Append(ctx context.Context, workspaceID int64, kind model.EventKind, payload json.RawMessage) (*model.Event, error)
	ListSince(ctx context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error)
	LastSeq(ctx context.Context, workspaceID int64) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
