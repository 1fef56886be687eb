package model

import "time"

// Workspace is an isolated collaboration context. Workspaces are never hard
// deleted; archiving frees the name for reuse.
type Workspace struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

func (w *Workspace) Archived() bool {
	return w.ArchivedAt != nil
}
