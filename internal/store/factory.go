package store

import (
	"collabsphere.app/server/core/db"
)

// Stores provides typed accessors over a Querier. Binding to a transaction
// gives stores whose operations commit together.
type Stores struct {
	q db.Querier
}

func New(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Workspaces() WorkspaceStore {
	return &workspaceStore{q: s.q}
}

func (s *Stores) Notes() NoteStore {
	return &noteStore{q: s.q}
}

func (s *Stores) Tasks() TaskStore {
	return &taskStore{q: s.q}
}

func (s *Stores) Messages() MessageStore {
	return &messageStore{q: s.q}
}

func (s *Stores) Leaderboard() LeaderboardStore {
	return &leaderboardStore{q: s.q}
}

func (s *Stores) Events() EventStore {
	return &eventStore{q: s.q}
}
