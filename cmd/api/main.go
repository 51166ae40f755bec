package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"

	"github.com/melih/lighthouse-runner/internal/adapters/builder"
	"github.com/melih/lighthouse-runner/internal/adapters/docker"
	"github.com/melih/lighthouse-runner/internal/adapters/http"
	"github.com/melih/lighthouse-runner/internal/adapters/workspace"
	"github.com/melih/lighthouse-runner/internal/config"
	"github.com/melih/lighthouse-runner/internal/core/logstream"
	"github.com/melih/lighthouse-runner/internal/core/services"
)

func main() {
	cfg := config.Load()

	// 1. Logging: everything logged is also published to log subscribers.
	broadcaster := logstream.NewBroadcaster()
	logger := slog.New(logstream.NewHandler(broadcaster, cfg.LogLevel,
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go broadcaster.Run(ctx)

	// 2. Initialize Adapters (Infrastructure)
	dockerAdapter, err := docker.NewAdapter()
	if err != nil {
		logger.Error("failed to initialize Docker adapter", "error", err)
		os.Exit(1)
	}
	defer dockerAdapter.Close()
	if err := dockerAdapter.Ping(ctx); err != nil {
		logger.Warn("docker daemon not reachable yet", "error", err)
	}

	metrics, err := services.NewMetrics(otel.Meter("github.com/melih/lighthouse-runner"))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	// 3. Core services
	orchestrator := services.NewOrchestrator(dockerAdapter, services.Config{
		HostAddress: cfg.PublicHost,
		SettleDelay: cfg.SettleDelay,
		Dockerfile:  cfg.Dockerfile,
	}, logger, metrics)
	orchestrator.Cleanup().PruneDangling(ctx)

	// 4. Initialize HTTP Handlers (Interface Adapters)
	workspaces := workspace.NewManager(cfg.UploadDir, cfg.Dockerfile)

	// 5. Setup Framework (Fiber) and routes
	app := http.NewApp(http.Handlers{
		Build:      http.NewBuildHandler(orchestrator, workspaces, builder.NewBuilderAdapter(logger)),
		Logs:       http.NewLogHandler(broadcaster, cfg.SSEKeepAlive),
		Containers: http.NewContainerHandler(dockerAdapter),
		Proxy:      http.NewProxyHandler(dockerAdapter, cfg.ProxyDomain),
	}, fiber.Config{
		BodyLimit:             512 << 20,
		DisableStartupMessage: true,
	})

	go func() {
		<-ctx.Done()
		// Ending the log streams first lets open SSE connections finish.
		broadcaster.Close()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	// 6. Start Server
	logger.Info("Server starting", "port", cfg.Port, "public_host", cfg.PublicHost)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
