package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"collabsphere.app/server/common/id"
	"collabsphere.app/server/common/logger"
	"collabsphere.app/server/common/otel"
	"collabsphere.app/server/core/config"
	"collabsphere.app/server/core/db"
	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/http/middleware"
	httprouter "collabsphere.app/server/internal/http/router"
	"collabsphere.app/server/internal/queue"
	"collabsphere.app/server/internal/service"
	"collabsphere.app/server/internal/session"
	"collabsphere.app/server/internal/store"
	"collabsphere.app/server/internal/worker"
	"collabsphere.app/server/internal/ws"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "collabsphere starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	stores := store.New(database.Querier())

	eventBus := bus.New(stores.Events(), bus.Config{
		BufferSize: cfg.Collab.SubscriberBuffer,
		ReplayPage: 256,
	})

	publisher := queue.NewNoopPublisher()

	var redisClient *redis.Client
	var relay *queue.Relay
	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.Stream)

		publisher = queue.NewRedisPublisher(redisClient, cfg.Redis.Stream, cfg.Redis.Consumer)

		relay, err = queue.NewRelay(redisClient, queue.RelayConfig{
			Stream:    cfg.Redis.Stream,
			Group:     cfg.Redis.Group,
			Consumer:  cfg.Redis.Consumer,
			Origin:    cfg.Redis.Consumer,
			BatchSize: 64,
			Block:     5 * time.Second,
		}, eventBus)
		if err != nil {
			slog.ErrorContext(ctx, "failed to start event relay", "error", err)
			os.Exit(1)
		}
		go relay.Run(ctx)
	} else {
		slog.InfoContext(ctx, "event relay disabled (no redis configured)")
	}

	gateway := service.NewGateway(service.NewTxRunner(database), eventBus, publisher, service.GatewayConfig{
		MaxMessageBytes: cfg.Collab.MaxMessageBytes,
		StoreRetries:    cfg.Collab.StoreRetries,
		RetryBaseDelay:  cfg.Collab.RetryBaseDelay,
	})

	sessions := session.NewManager(gateway, session.Config{
		HeartbeatWindow: cfg.Collab.HeartbeatWindow,
		SweepInterval:   cfg.Collab.SweepInterval,
	})
	go sessions.Run(ctx)

	snapshots := service.NewSnapshotService(stores, sessions, cfg.Collab.SnapshotMessages)
	services := service.NewServices(gateway, snapshots)

	sweeper := worker.NewRetentionSweeper(stores.Events(), worker.RetentionConfig{
		Window:   cfg.Collab.ReplayWindow,
		Interval: cfg.Collab.RetentionInterval,
	})
	go sweeper.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, sessions, eventBus)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// No ReadTimeout/WriteTimeout: websocket connections are
		// long-lived and manage their own deadlines.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if relay != nil {
		relay.Stop()
	}
	sweeper.Stop()
	sessions.Stop()
	if err := publisher.Close(); err != nil {
		slog.ErrorContext(shutdownCtx, "publisher close error", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.ErrorContext(shutdownCtx, "redis close error", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, sessions *session.Manager, eventBus *bus.Bus) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, sessions, eventBus, ws.Config{
		MaxMessageBytes: int64(cfg.Collab.MaxMessageBytes),
		HeartbeatWindow: cfg.Collab.HeartbeatWindow,
	})

	return router
}

const banner = `
 ██████╗ ██████╗ ██╗     ██╗      █████╗ ██████╗ ███████╗██████╗ ██╗  ██╗███████╗██████╗ ███████╗
██╔════╝██╔═══██╗██║     ██║     ██╔══██╗██╔══██╗██╔════╝██╔══██╗██║  ██║██╔════╝██╔══██╗██╔════╝
██║     ██║   ██║██║     ██║     ███████║██████╔╝███████╗██████╔╝███████║█████╗  ██████╔╝█████╗
██║     ██║   ██║██║     ██║     ██╔══██║██╔══██╗╚════██║██╔═══╝ ██╔══██║██╔══╝  ██╔══██╗██╔══╝
╚██████╗╚██████╔╝███████╗███████╗██║  ██║██████╔╝███████║██║     ██║  ██║███████╗██║  ██║███████╗
 ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝╚═════╝ ╚══════╝╚═╝     ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚══════╝
`
