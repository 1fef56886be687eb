package service

import (
	"context"
	"fmt"

	"collabsphere.app/server/internal/model"
)

// Snapshot is the full current state of a workspace plus the sequence
// number of its newest event. A client renders the snapshot and subscribes
// from LastSeq, which hands it exactly the events the snapshot does not
// already reflect.
type Snapshot struct {
	Workspace   model.Workspace          `json:"workspace"`
	Note        model.Note               `json:"note"`
	Tasks       []model.Task             `json:"tasks"`
	Messages    []model.ChatMessage      `json:"messages"`
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	Members     []model.Member           `json:"members"`
	LastSeq     int64                    `json:"last_seq"`
}

// Presence is the read side of the session manager needed for snapshots.
type Presence interface {
	Members(workspaceID int64) []model.Member
}

// SnapshotService serves read-only workspace state: listings, snapshots,
// and historical event replay pages.
type SnapshotService interface {
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	Workspace(ctx context.Context, workspaceID int64) (*model.Workspace, error)
	Snapshot(ctx context.Context, workspaceID int64) (*Snapshot, error)
	Events(ctx context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error)
}

type snapshotService struct {
	stores      StoreProvider
	presence    Presence
	maxMessages int32
}

func NewSnapshotService(stores StoreProvider, presence Presence, maxMessages int32) SnapshotService {
	if maxMessages <= 0 {
		maxMessages = 200
	}
	return &snapshotService{
		stores:      stores,
		presence:    presence,
		maxMessages: maxMessages,
	}
}

func (s *snapshotService) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	return s.stores.Workspaces().List(ctx)
}

func (s *snapshotService) Workspace(ctx context.Context, workspaceID int64) (*model.Workspace, error) {
	return s.stores.Workspaces().GetByID(ctx, workspaceID)
}

// Snapshot reads LastSeq first: a mutation committing mid-snapshot then
// shows up both in the state and in the subscription replay, and the
// duplicate is harmless because every event is idempotent against newer
// state. Reading it last could lose the window in between.
func (s *snapshotService) Snapshot(ctx context.Context, workspaceID int64) (*Snapshot, error) {
	ws, err := s.stores.Workspaces().GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	lastSeq, err := s.stores.Events().LastSeq(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	note, err := s.stores.Notes().Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.stores.Tasks().ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("snapshotting tasks: %w", err)
	}

	messages, err := s.stores.Messages().ListRecent(ctx, workspaceID, s.maxMessages)
	if err != nil {
		return nil, fmt.Errorf("snapshotting messages: %w", err)
	}

	leaderboard, err := s.stores.Leaderboard().ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("snapshotting leaderboard: %w", err)
	}

	return &Snapshot{
		Workspace:   *ws,
		Note:        *note,
		Tasks:       tasks,
		Messages:    messages,
		Leaderboard: leaderboard,
		Members:     s.presence.Members(workspaceID),
		LastSeq:     lastSeq,
	}, nil
}

func (s *snapshotService) Events(ctx context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error) {
	if _, err := s.stores.Workspaces().GetByID(ctx, workspaceID); err != nil {
		return nil, err
	}
	return s.stores.Events().ListSince(ctx, workspaceID, fromSeq, limit)
}
