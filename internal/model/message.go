package model

import "time"

// ChatMessage is an immutable workspace chat entry. IDs are assigned
// per workspace and strictly increase, which defines the total order of
// the conversation.
type ChatMessage struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Sender      string    `json:"sender"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}
