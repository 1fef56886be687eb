package router

import (
	"github.com/gin-gonic/gin"

	"collabsphere.app/server/internal/http/handler"
)

func WorkspaceRouter(router *gin.RouterGroup, workspaces *handler.WorkspaceHandler, sockets *handler.SocketHandler) {
	router.POST("", workspaces.Create)
	router.GET("", workspaces.List)
	router.POST("/:id/archive", workspaces.Archive)
	router.GET("/:id/snapshot", workspaces.Snapshot)
	router.GET("/:id/events", workspaces.Events)
	router.GET("/:id/ws", sockets.Attach)
}
