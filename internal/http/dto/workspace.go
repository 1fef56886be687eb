package dto

import (
	"time"

	"collabsphere.app/server/internal/model"
)

type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

type WorkspaceResponse struct {
	ID         int64      `json:"id,string"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

func ToWorkspaceResponse(w *model.Workspace) *WorkspaceResponse {
	return &WorkspaceResponse{
		ID:         w.ID,
		Name:       w.Name,
		Slug:       w.Slug,
		CreatedAt:  w.CreatedAt,
		ArchivedAt: w.ArchivedAt,
	}
}

func ToWorkspaceListResponse(workspaces []model.Workspace) []*WorkspaceResponse {
	out := make([]*WorkspaceResponse, len(workspaces))
	for i := range workspaces {
		out[i] = ToWorkspaceResponse(&workspaces[i])
	}
	return out
}
