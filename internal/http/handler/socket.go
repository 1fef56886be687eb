package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"collabsphere.app/server/common/id"
	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/http/middleware"
	"collabsphere.app/server/internal/service"
	"collabsphere.app/server/internal/session"
	"collabsphere.app/server/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketHandler attaches websocket clients to a workspace: one live
// connection per handler invocation, served until disconnect.
type SocketHandler struct {
	gateway   service.Gateway
	snapshots service.SnapshotService
	sessions  *session.Manager
	bus       *bus.Bus
	cfg       ws.Config
}

func NewSocketHandler(gateway service.Gateway, snapshots service.SnapshotService,
	sessions *session.Manager, b *bus.Bus, cfg ws.Config,
) *SocketHandler {
	return &SocketHandler{
		gateway:   gateway,
		snapshots: snapshots,
		sessions:  sessions,
		bus:       b,
		cfg:       cfg,
	}
}

// Attach upgrades the request and serves the connection. `from` selects the
// first event sequence to deliver; clients that fetched a snapshot pass its
// last_seq, a bare `from=0` replays the full history.
func (h *SocketHandler) Attach(c *gin.Context) {
	ctx := c.Request.Context()

	workspaceID, ok := workspaceIDParam(c)
	if !ok {
		return
	}

	fromSeq, err := strconv.ParseInt(c.DefaultQuery("from", "0"), 10, 64)
	if err != nil || fromSeq < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from parameter"})
		return
	}

	workspace, err := h.snapshots.Workspace(ctx, workspaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	if workspace.Archived() {
		respondError(c, apperr.New(apperr.KindInvalidState, "workspace is archived"))
		return
	}

	displayName := middleware.Principal(c)
	connectionID := strconv.FormatInt(id.New(), 10)

	// Join before the upgrade so a duplicate display name is still a
	// plain HTTP conflict.
	if _, err := h.sessions.Join(ctx, workspaceID, displayName, connectionID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
		h.sessions.Leave(ctx, connectionID)
		return
	}

	sub := h.bus.Subscribe(ctx, workspaceID, fromSeq)
	client := ws.NewClient(conn, h.gateway, h.sessions, sub,
		workspaceID, displayName, connectionID, h.cfg)
	client.Run(ctx)
}
