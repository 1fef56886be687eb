package store

import (
	"context"
	"errors"
	"time"

	"collabsphere.app/server/core/db"
	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/model"
	"github.com/jackc/pgx/v5"
)

type workspaceStore struct {
	q db.Querier
}

func (s *workspaceStore) Create(ctx context.Context, ws *model.Workspace) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO workspaces (id, name, slug)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, slug, created_at, archived_at`,
		ws.ID, ws.Name, ws.Slug,
	)
	created, err := scanWorkspace(row)
	if err != nil {
		return wrapDB(err, "creating workspace")
	}
	*ws = *created
	return nil
}

func (s *workspaceStore) GetByID(ctx context.Context, id int64) (*model.Workspace, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, name, slug, created_at, archived_at
		 FROM workspaces WHERE id = $1`,
		id,
	)
	ws, err := scanWorkspace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "workspace %d not found", id)
		}
		return nil, wrapDB(err, "getting workspace")
	}
	return ws, nil
}

func (s *workspaceStore) GetBySlug(ctx context.Context, slug string) (*model.Workspace, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, name, slug, created_at, archived_at
		 FROM workspaces WHERE slug = $1 AND archived_at IS NULL`,
		slug,
	)
	ws, err := scanWorkspace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "workspace %q not found", slug)
		}
		return nil, wrapDB(err, "getting workspace by slug")
	}
	return ws, nil
}

func (s *workspaceStore) List(ctx context.Context) ([]model.Workspace, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, name, slug, created_at, archived_at
		 FROM workspaces WHERE archived_at IS NULL ORDER BY created_at`,
	)
	if err != nil {
		return nil, wrapDB(err, "listing workspaces")
	}
	defer rows.Close()

	var result []model.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, wrapDB(err, "scanning workspace")
		}
		result = append(result, *ws)
	}
	return result, rows.Err()
}

func (s *workspaceStore) Archive(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE workspaces SET archived_at = $2
		 WHERE id = $1 AND archived_at IS NULL`,
		id, at,
	)
	if err != nil {
		return wrapDB(err, "archiving workspace")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "workspace %d not found", id)
	}
	return nil
}

func scanWorkspace(row pgx.Row) (*model.Workspace, error) {
	var ws model.Workspace
	if err := row.Scan(&ws.ID, &ws.Name, &ws.Slug, &ws.CreatedAt, &ws.ArchivedAt); err != nil {
		return nil, err
	}
	return &ws, nil
}
