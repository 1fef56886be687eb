package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collabsphere.app/server/internal/http/dto"
	"collabsphere.app/server/internal/service"
)

type WorkspaceHandler struct {
	gateway   service.Gateway
	snapshots service.SnapshotService
}

func NewWorkspaceHandler(gateway service.Gateway, snapshots service.SnapshotService) *WorkspaceHandler {
	return &WorkspaceHandler{gateway: gateway, snapshots: snapshots}
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workspace, err := h.gateway.CreateWorkspace(ctx, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToWorkspaceResponse(workspace))
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.snapshots.ListWorkspaces(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": dto.ToWorkspaceListResponse(workspaces)})
}

func (h *WorkspaceHandler) Archive(c *gin.Context) {
	workspaceID, ok := workspaceIDParam(c)
	if !ok {
		return
	}

	if err := h.gateway.ArchiveWorkspace(c.Request.Context(), workspaceID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *WorkspaceHandler) Snapshot(c *gin.Context) {
	workspaceID, ok := workspaceIDParam(c)
	if !ok {
		return
	}

	snap, err := h.snapshots.Snapshot(c.Request.Context(), workspaceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToSnapshotResponse(snap))
}

func (h *WorkspaceHandler) Events(c *gin.Context) {
	workspaceID, ok := workspaceIDParam(c)
	if !ok {
		return
	}

	fromSeq, err := strconv.ParseInt(c.DefaultQuery("from", "0"), 10, 64)
	if err != nil || fromSeq < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from parameter"})
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "500"), 10, 32)
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
		return
	}

	events, err := h.snapshots.Events(c.Request.Context(), workspaceID, fromSeq, int32(limit))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": dto.ToEventListResponse(events)})
}

func workspaceIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return 0, false
	}
	return id, true
}
