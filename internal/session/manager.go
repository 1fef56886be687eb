package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"collabsphere.app/server/common/logger"
	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/model"
)

// PresenceEmitter records presence changes in the workspace event stream.
// Implemented by the command gateway so joins and leaves are ordered with
// every other workspace event.
type PresenceEmitter interface {
	MemberJoined(ctx context.Context, workspaceID int64, displayName string) error
	MemberLeft(ctx context.Context, workspaceID int64, displayName, reason string) error
}

type Config struct {
	// HeartbeatWindow is how long a member may go without a heartbeat
	// before the sweeper evicts it.
	HeartbeatWindow time.Duration
	// SweepInterval is how often the sweeper checks for stale members.
	SweepInterval time.Duration
}

// Manager tracks connected workspace members. Presence is derived state:
// it lives only in this registry, is rebuilt from connections, and does not
// survive a restart. Durable workspace content is never stored here.
type Manager struct {
	emitter PresenceEmitter
	cfg     Config

	mu          sync.Mutex
	byConn      map[string]*model.Member
	byWorkspace map[int64]map[string]*model.Member // displayName → member

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

func NewManager(emitter PresenceEmitter, cfg Config) *Manager {
	if cfg.HeartbeatWindow <= 0 {
		cfg.HeartbeatWindow = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	return &Manager{
		emitter:     emitter,
		cfg:         cfg,
		byConn:      make(map[string]*model.Member),
		byWorkspace: make(map[int64]map[string]*model.Member),
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Join registers a connection as a workspace member. A display name may
// hold only one active connection per workspace; a second claim is a
// Conflict until the first leaves or times out.
func (m *Manager) Join(ctx context.Context, workspaceID int64, displayName, connectionID string) (*model.Member, error) {
	now := time.Now()

	m.mu.Lock()
	if existing, ok := m.byWorkspace[workspaceID][displayName]; ok {
		m.mu.Unlock()
		return nil, apperr.Newf(apperr.KindConflict,
			"display name %q is already active in workspace %d (connection %s)",
			displayName, workspaceID, existing.ConnectionID)
	}

	member := &model.Member{
		WorkspaceID:  workspaceID,
		DisplayName:  displayName,
		ConnectionID: connectionID,
		JoinedAt:     now,
		LastSeenAt:   now,
	}
	if m.byWorkspace[workspaceID] == nil {
		m.byWorkspace[workspaceID] = make(map[string]*model.Member)
	}
	m.byWorkspace[workspaceID][displayName] = member
	m.byConn[connectionID] = member
	m.mu.Unlock()

	if err := m.emitter.MemberJoined(ctx, workspaceID, displayName); err != nil {
		// Roll the registration back so presence and the event stream agree.
		m.removeLocked(connectionID)
		return nil, err
	}

	slog.InfoContext(ctx, "member joined",
		"workspace_id", workspaceID, "display_name", displayName, "connection_id", connectionID)
	return member, nil
}

// Heartbeat refreshes a connection's liveness window.
func (m *Manager) Heartbeat(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.byConn[connectionID]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "connection %s is not registered", connectionID)
	}
	member.LastSeenAt = time.Now()
	return nil
}

// Leave removes a connection's membership and records the departure in the
// workspace event stream. Unknown connections are ignored.
func (m *Manager) Leave(ctx context.Context, connectionID string) {
	member := m.removeLocked(connectionID)
	if member == nil {
		return
	}

	if err := m.emitter.MemberLeft(ctx, member.WorkspaceID, member.DisplayName, "left"); err != nil {
		slog.WarnContext(ctx, "failed to record member departure",
			"workspace_id", member.WorkspaceID, "display_name", member.DisplayName, "error", err)
	}

	slog.InfoContext(ctx, "member left",
		"workspace_id", member.WorkspaceID, "display_name", member.DisplayName)
}

// Members returns the current members of a workspace.
func (m *Manager) Members(workspaceID int64) []model.Member {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]model.Member, 0, len(m.byWorkspace[workspaceID]))
	for _, member := range m.byWorkspace[workspaceID] {
		members = append(members, *member)
	}
	return members
}

// Run evicts members whose heartbeat lapsed. Blocks until Stop or ctx
// cancellation.
func (m *Manager) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "collab.session",
	})
	defer close(m.stoppedCh)

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "presence sweeper started",
		"heartbeat_window", m.cfg.HeartbeatWindow, "sweep_interval", m.cfg.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	<-m.stoppedCh
}

func (m *Manager) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-m.cfg.HeartbeatWindow)

	m.mu.Lock()
	var stale []*model.Member
	for _, member := range m.byConn {
		if member.LastSeenAt.Before(cutoff) {
			stale = append(stale, member)
		}
	}
	for _, member := range stale {
		m.remove(member.ConnectionID)
	}
	m.mu.Unlock()

	for _, member := range stale {
		slog.InfoContext(ctx, "member timed out",
			"workspace_id", member.WorkspaceID, "display_name", member.DisplayName,
			"last_seen_at", member.LastSeenAt)
		if err := m.emitter.MemberLeft(ctx, member.WorkspaceID, member.DisplayName, "timeout"); err != nil {
			slog.WarnContext(ctx, "failed to record member timeout",
				"workspace_id", member.WorkspaceID, "display_name", member.DisplayName, "error", err)
		}
	}
}

func (m *Manager) removeLocked(connectionID string) *model.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(connectionID)
}

// remove expects m.mu held.
func (m *Manager) remove(connectionID string) *model.Member {
	member, ok := m.byConn[connectionID]
	if !ok {
		return nil
	}
	delete(m.byConn, connectionID)
	if names, ok := m.byWorkspace[member.WorkspaceID]; ok {
		delete(names, member.DisplayName)
		if len(names) == 0 {
			delete(m.byWorkspace, member.WorkspaceID)
		}
	}
	return member
}
