package router

import (
	"github.com/gin-gonic/gin"

	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/http/handler"
	"collabsphere.app/server/internal/http/middleware"
	"collabsphere.app/server/internal/service"
	"collabsphere.app/server/internal/session"
	"collabsphere.app/server/internal/ws"
)

func SetupRoutes(router *gin.Engine, services *service.Services, sessions *session.Manager, b *bus.Bus, wsCfg ws.Config) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireIdentity())
	{
		workspaceHandler := handler.NewWorkspaceHandler(services.Gateway(), services.Snapshots())
		socketHandler := handler.NewSocketHandler(services.Gateway(), services.Snapshots(), sessions, b, wsCfg)
		WorkspaceRouter(v1.Group("/workspaces"), workspaceHandler, socketHandler)
	}
}
