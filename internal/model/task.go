package model

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a workspace to-do item. The only legal transition is
// pending → completed; tasks are never deleted.
type Task struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Assignee    *string    `json:"assignee,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
