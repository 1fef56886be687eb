package model

import "time"

// LeaderboardEntry accumulates points awarded to a display name within a
// workspace. Points never decrease.
type LeaderboardEntry struct {
	WorkspaceID int64     `json:"workspace_id"`
	DisplayName string    `json:"display_name"`
	Points      int64     `json:"points"`
	UpdatedAt   time.Time `json:"updated_at"`
}
