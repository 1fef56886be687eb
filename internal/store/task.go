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

type taskStore struct {
	q db.Querier
}

func (s *taskStore) Create(ctx context.Context, task *model.Task) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO tasks (id, workspace_id, description, status, assignee)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, workspace_id, description, status, assignee, created_at, completed_at`,
		task.ID, task.WorkspaceID, task.Description, task.Status, task.Assignee,
	)
	created, err := scanTask(row)
	if err != nil {
		return wrapDB(err, "creating task")
	}
	*task = *created
	return nil
}

func (s *taskStore) GetByID(ctx context.Context, workspaceID, taskID int64) (*model.Task, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, workspace_id, description, status, assignee, created_at, completed_at
		 FROM tasks WHERE workspace_id = $1 AND id = $2`,
		workspaceID, taskID,
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "task %d not found in workspace %d", taskID, workspaceID)
		}
		return nil, wrapDB(err, "getting task")
	}
	return task, nil
}

// Complete transitions a pending task to completed. Completing an absent
// task is NotFound; completing an already-completed one is InvalidState.
func (s *taskStore) Complete(ctx context.Context, workspaceID, taskID int64, at time.Time) (*model.Task, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE tasks SET status = $4, completed_at = $3
		 WHERE workspace_id = $1 AND id = $2 AND status = $5
		 RETURNING id, workspace_id, description, status, assignee, created_at, completed_at`,
		workspaceID, taskID, at, model.TaskStatusCompleted, model.TaskStatusPending,
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, getErr := s.GetByID(ctx, workspaceID, taskID)
			if getErr != nil {
				return nil, getErr
			}
			if existing.Status == model.TaskStatusCompleted {
				return nil, apperr.Newf(apperr.KindInvalidState, "task %d is already completed", taskID)
			}
			return nil, wrapDB(err, "completing task")
		}
		return nil, wrapDB(err, "completing task")
	}
	return task, nil
}

func (s *taskStore) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Task, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, workspace_id, description, status, assignee, created_at, completed_at
		 FROM tasks WHERE workspace_id = $1 ORDER BY created_at`,
		workspaceID,
	)
	if err != nil {
		return nil, wrapDB(err, "listing tasks")
	}
	defer rows.Close()

	var result []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, wrapDB(err, "scanning task")
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var task model.Task
	if err := row.Scan(&task.ID, &task.WorkspaceID, &task.Description, &task.Status,
		&task.Assignee, &task.CreatedAt, &task.CompletedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
