package store

import (
	"context"

	"collabsphere.app/server/core/db"
	"collabsphere.app/server/internal/model"
)

type leaderboardStore struct {
	q db.Querier
}

func (s *leaderboardStore) AddPoints(ctx context.Context, workspaceID int64, displayName string, amount int64) (*model.LeaderboardEntry, error) {
	row := s.q.QueryRow(ctx,
		`INSERT INTO leaderboard (workspace_id, display_name, points)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (workspace_id, display_name)
		 DO UPDATE SET points = leaderboard.points + EXCLUDED.points, updated_at = now()
		 RETURNING workspace_id, display_name, points, updated_at`,
		workspaceID, displayName, amount,
	)
	var entry model.LeaderboardEntry
	if err := row.Scan(&entry.WorkspaceID, &entry.DisplayName, &entry.Points, &entry.UpdatedAt); err != nil {
		return nil, wrapDB(err, "awarding points")
	}
	return &entry, nil
}

func (s *leaderboardStore) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.LeaderboardEntry, error) {
	rows, err := s.q.Query(ctx,
		`SELECT workspace_id, display_name, points, updated_at
		 FROM leaderboard WHERE workspace_id = $1
		 ORDER BY points DESC, display_name`,
		workspaceID,
	)
	if err != nil {
		return nil, wrapDB(err, "listing leaderboard")
	}
	defer rows.Close()

	var result []model.LeaderboardEntry
	for rows.Next() {
		var entry model.LeaderboardEntry
		if err := rows.Scan(&entry.WorkspaceID, &entry.DisplayName, &entry.Points, &entry.UpdatedAt); err != nil {
			return nil, wrapDB(err, "scanning leaderboard entry")
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
