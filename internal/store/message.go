package store

import (
	"context"

	"collabsphere.app/server/core/db"
	"collabsphere.app/server/internal/model"
)

type messageStore struct {
	q db.Querier
}

// Create assigns the next per-workspace message ID. The MAX(id)+1 read is
// safe because the gateway serializes mutations per workspace.
func (s *messageStore) Create(ctx context.Context, msg *model.ChatMessage) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO messages (workspace_id, id, sender, text)
		 SELECT $1, COALESCE(MAX(id), 0) + 1, $2, $3 FROM messages WHERE workspace_id = $1
		 RETURNING workspace_id, id, sender, text, created_at`,
		msg.WorkspaceID, msg.Sender, msg.Text,
	)
	var created model.ChatMessage
	if err := row.Scan(&created.WorkspaceID, &created.ID, &created.Sender,
		&created.Text, &created.CreatedAt); err != nil {
		return wrapDB(err, "creating message")
	}
	*msg = created
	return nil
}

func (s *messageStore) ListRecent(ctx context.Context, workspaceID int64, limit int32) ([]model.ChatMessage, error) {
	rows, err := s.q.Query(ctx,
		`SELECT workspace_id, id, sender, text, created_at
		 FROM (
		     SELECT workspace_id, id, sender, text, created_at
		     FROM messages WHERE workspace_id = $1
		     ORDER BY id DESC LIMIT $2
		 ) recent
		 ORDER BY id`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, wrapDB(err, "listing messages")
	}
	defer rows.Close()

	var result []model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		if err := rows.Scan(&msg.WorkspaceID, &msg.ID, &msg.Sender, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, wrapDB(err, "scanning message")
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
