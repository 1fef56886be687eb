package model

import (
	"encoding/json"
	"time"
)

// EventKind identifies the state change an event records.
type EventKind string

const (
	EventKindWorkspaceCreated  EventKind = "workspace_created"
	EventKindWorkspaceArchived EventKind = "workspace_archived"
	EventKindMessagePosted     EventKind = "message_posted"
	EventKindTaskAdded         EventKind = "task_added"
	EventKindTaskCompleted     EventKind = "task_completed"
	EventKindNotesUpdated      EventKind = "notes_updated"
	EventKindPointsAwarded     EventKind = "points_awarded"
	EventKindMemberJoined      EventKind = "member_joined"
	EventKindMemberLeft        EventKind = "member_left"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventKindWorkspaceCreated, EventKindWorkspaceArchived,
		EventKindMessagePosted, EventKindTaskAdded, EventKindTaskCompleted,
		EventKindNotesUpdated, EventKindPointsAwarded,
		EventKindMemberJoined, EventKindMemberLeft:
		return true
	}
	return false
}

// Event is an immutable record of a state change within a workspace.
// Sequence numbers are assigned transactionally with the mutation that
// produced the event, strictly increase per workspace, and are gapless
// starting at 1.
type Event struct {
	WorkspaceID int64           `json:"workspace_id"`
	Seq         int64           `json:"seq"`
	Kind        EventKind       `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}
