package model

import "time"

// Note is the shared free-text document of a workspace. Writes carry the
// version the writer last saw; the store rejects stale versions so two
// concurrent editors cannot silently overwrite each other.
type Note struct {
	WorkspaceID int64     `json:"workspace_id"`
	Content     string    `json:"content"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}
