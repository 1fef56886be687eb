package handler_test

import (
	"context"

	"collabsphere.app/server/internal/model"
	"collabsphere.app/server/internal/service"
)

type mockGateway struct {
	createWorkspaceFn  func(ctx context.Context, name string) (*model.Workspace, error)
	archiveWorkspaceFn func(ctx context.Context, workspaceID int64) error
}

func (m *mockGateway) CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	if m.createWorkspaceFn != nil {
		return m.createWorkspaceFn(ctx, name)
	}
	return nil, nil
}

func (m *mockGateway) ArchiveWorkspace(ctx context.Context, workspaceID int64) error {
	if m.archiveWorkspaceFn != nil {
		return m.archiveWorkspaceFn(ctx, workspaceID)
	}
	return nil
}

func (m *mockGateway) PostMessage(context.Context, int64, string, string) (*model.ChatMessage, error) {
	return nil, nil
}

func (m *mockGateway) AddTask(context.Context, int64, string, *string) (*model.Task, error) {
	return nil, nil
}

func (m *mockGateway) CompleteTask(context.Context, int64, int64) (*model.Task, error) {
	return nil, nil
}

func (m *mockGateway) UpdateNotes(context.Context, int64, string, int64) (*model.Note, error) {
	return nil, nil
}

func (m *mockGateway) AwardPoints(context.Context, int64, string, int64) (*model.LeaderboardEntry, error) {
	return nil, nil
}

func (m *mockGateway) MemberJoined(context.Context, int64, string) error { return nil }

func (m *mockGateway) MemberLeft(context.Context, int64, string, string) error { return nil }

type mockSnapshots struct {
	listFn      func(ctx context.Context) ([]model.Workspace, error)
	workspaceFn func(ctx context.Context, workspaceID int64) (*model.Workspace, error)
	snapshotFn  func(ctx context.Context, workspaceID int64) (*service.Snapshot, error)
	eventsFn    func(ctx context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error)
}

func (m *mockSnapshots) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockSnapshots) Workspace(ctx context.Context, workspaceID int64) (*model.Workspace, error) {
	if m.workspaceFn != nil {
		return m.workspaceFn(ctx, workspaceID)
	}
	return nil, nil
}

func (m *mockSnapshots) Snapshot(ctx context.Context, workspaceID int64) (*service.Snapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, workspaceID)
	}
	return nil, nil
}

func (m *mockSnapshots) Events(ctx context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error) {
	if m.eventsFn != nil {
		return m.eventsFn(ctx, workspaceID, fromSeq, limit)
	}
	return nil, nil
}
