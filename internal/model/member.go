package model

import "time"

// Member is a currently connected participant of a workspace. Presence is
// derived from the live connection registry and does not survive a process
// restart.
type Member struct {
	WorkspaceID  int64     `json:"workspace_id"`
	DisplayName  string    `json:"display_name"`
	ConnectionID string    `json:"connection_id"`
	JoinedAt     time.Time `json:"joined_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}
