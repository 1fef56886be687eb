package store

import (
	"context"
	"encoding/json"
	"time"

	"collabsphere.app/server/core/db"
	"collabsphere.app/server/internal/model"
)

type eventStore struct {
	q db.Querier
}

// Append assigns seq = last + 1 for the workspace. Gaplessness relies on
// two things: the caller holds the workspace's mutation lock, and the
// insert runs in the same transaction as the mutation it records.
func (s *eventStore) Append(ctx context.Context, workspaceID int64, kind model.EventKind, payload json.RawMessage) (*model.Event, error) {
	row := s.q.QueryRow(ctx,
		`INSERT INTO events (workspace_id, seq, kind, payload)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3 FROM events WHERE workspace_id = $1
		 RETURNING workspace_id, seq, kind, payload, created_at`,
		workspaceID, kind, payload,
	)
	var ev model.Event
	if err := row.Scan(&ev.WorkspaceID, &ev.Seq, &ev.Kind, &ev.Payload, &ev.CreatedAt); err != nil {
		return nil, wrapDB(err, "appending event")
	}
	return &ev, nil
}

func (s *eventStore) ListSince(ctx context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error) {
	rows, err := s.q.Query(ctx,
		`SELECT workspace_id, seq, kind, payload, created_at
		 FROM events WHERE workspace_id = $1 AND seq > $2
		 ORDER BY seq LIMIT $3`,
		workspaceID, fromSeq, limit,
	)
	if err != nil {
		return nil, wrapDB(err, "listing events")
	}
	defer rows.Close()

	var result []model.Event
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.WorkspaceID, &ev.Seq, &ev.Kind, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, wrapDB(err, "scanning event")
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (s *eventStore) LastSeq(ctx context.Context, workspaceID int64) (int64, error) {
	row := s.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE workspace_id = $1`,
		workspaceID,
	)
	var last int64
	if err := row.Scan(&last); err != nil {
		return 0, wrapDB(err, "reading last sequence")
	}
	return last, nil
}

// DeleteBefore prunes events outside the replay window. Subscribers whose
// cursor predates the window must fall back to a snapshot. The newest event
// of each workspace always survives pruning: Append derives the next seq
// from MAX(seq), and deleting the last row would restart the sequence.
func (s *eventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM events e
		 WHERE e.created_at < $1
		   AND e.seq < (SELECT MAX(seq) FROM events m WHERE m.workspace_id = e.workspace_id)`,
		cutoff,
	)
	if err != nil {
		return 0, wrapDB(err, "pruning events")
	}
	return tag.RowsAffected(), nil
}
