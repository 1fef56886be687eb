package service

import (
	"context"

	"collabsphere.app/server/core/db"
	"collabsphere.app/server/internal/store"
)

// StoreProvider exposes the stores a transactional operation may touch.
type StoreProvider interface {
	Workspaces() store.WorkspaceStore
	Notes() store.NoteStore
	Tasks() store.TaskStore
	Messages() store.MessageStore
	Leaderboard() store.LeaderboardStore
	Events() store.EventStore
}

// TxRunner runs functions within a transaction and provides stores bound to
// that transaction. The gateway relies on it so a command's mutation and
// its event append commit or roll back together.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(database *db.DB) TxRunner {
	return &dbTxRunner{db: database}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q db.Querier) error {
		return fn(store.New(q))
	})
}
