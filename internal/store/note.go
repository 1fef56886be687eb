package store

import (
	"context"
	"errors"

	"collabsphere.app/server/core/db"
	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/model"
	"github.com/jackc/pgx/v5"
)

type noteStore struct {
	q db.Querier
}

func (s *noteStore) Create(ctx context.Context, workspaceID int64) error {
	if _, err := s.q.Exec(ctx,
		`INSERT INTO notes (workspace_id) VALUES ($1)`,
		workspaceID,
	); err != nil {
		return wrapDB(err, "creating note")
	}
	return nil
}

func (s *noteStore) Get(ctx context.Context, workspaceID int64) (*model.Note, error) {
	row := s.q.QueryRow(ctx,
		`SELECT workspace_id, content, version, updated_at
		 FROM notes WHERE workspace_id = $1`,
		workspaceID,
	)
	var note model.Note
	if err := row.Scan(&note.WorkspaceID, &note.Content, &note.Version, &note.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "note for workspace %d not found", workspaceID)
		}
		return nil, wrapDB(err, "getting note")
	}
	return &note, nil
}

// Update is a compare-and-swap on the note version. A stale expectedVersion
// yields Conflict and the caller must re-fetch and retry.
func (s *noteStore) Update(ctx context.Context, workspaceID int64, content string, expectedVersion int64) (*model.Note, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE notes SET content = $2, version = version + 1, updated_at = now()
		 WHERE workspace_id = $1 AND version = $3
		 RETURNING workspace_id, content, version, updated_at`,
		workspaceID, content, expectedVersion,
	)
	var note model.Note
	if err := row.Scan(&note.WorkspaceID, &note.Content, &note.Version, &note.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing note from a stale version.
			if _, getErr := s.Get(ctx, workspaceID); getErr != nil {
				return nil, getErr
			}
			return nil, apperr.Newf(apperr.KindConflict,
				"note version mismatch for workspace %d: expected %d", workspaceID, expectedVersion)
		}
		return nil, wrapDB(err, "updating note")
	}
	return &note, nil
}
