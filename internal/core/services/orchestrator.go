// Package services holds the build-and-run state machine and the helpers
// it composes: port resolution, health verification and cleanup.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

const componentKey = "component"

// Config tunes the orchestrator.
type Config struct {
	// HostAddress is the address placed in the URLs handed back to callers.
	HostAddress string
	// SettleDelay is the wait between starting a container and checking it.
	// Zero checks immediately; config.Load defaults it to DefaultSettleDelay.
	SettleDelay time.Duration
	// Dockerfile is the build recipe file name inside the workspace.
	Dockerfile string
}

// Orchestrator builds an image from a workspace, runs it and reports where
// it can be reached. A request whose image name is already held by a
// container is refused before anything is built, so redeploying a name
// requires removing the old container first. Requests are independent; the
// engine is the only shared state, so two concurrent requests using the same
// image name still race on it.
type Orchestrator struct {
	engine  ports.ContainerEngine
	health  *HealthVerifier
	cleanup *CleanupManager
	metrics *Metrics
	logger  *slog.Logger
	cfg     Config
}

// NewOrchestrator wires an orchestrator around engine. metrics may be nil.
func NewOrchestrator(engine ports.ContainerEngine, cfg Config, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	if cfg.HostAddress == "" {
		cfg.HostAddress = "localhost"
	}
	if cfg.Dockerfile == "" {
		cfg.Dockerfile = "Dockerfile"
	}
	return &Orchestrator{
		engine:  engine,
		health:  NewHealthVerifier(engine, cfg.SettleDelay, logger),
		cleanup: NewCleanupManager(engine, logger, metrics),
		metrics: metrics,
		logger:  logger.With(componentKey, "orchestrator"),
		cfg:     cfg,
	}
}

// Cleanup returns the cleanup manager used by the orchestrator.
func (o *Orchestrator) Cleanup() *CleanupManager {
	return o.cleanup
}

// Execute runs one request to completion. The workspace is removed and
// dangling images are pruned exactly once, whatever the outcome. Failures
// are reported in the result, never as a panic or separate error.
func (o *Orchestrator) Execute(ctx context.Context, req domain.BuildRequest) domain.Result {
	start := time.Now()

	res := o.execute(ctx, req)

	if req.Workspace != "" {
		if err := os.RemoveAll(req.Workspace); err != nil {
			o.logger.WarnContext(ctx, "failed to remove workspace", "path", req.Workspace, "error", err)
		}
	}
	o.cleanup.PruneDangling(ctx)

	if res.Err != nil {
		o.logger.ErrorContext(ctx, fmt.Sprintf("An error occurred: %v", res.Err))
	}
	o.metrics.RecordBuild(ctx, outcome(res.Err), time.Since(start))
	return res
}

func (o *Orchestrator) execute(ctx context.Context, req domain.BuildRequest) domain.Result {
	if err := o.claimName(ctx, req.ImageName); err != nil {
		return domain.Result{Err: err}
	}
	if err := o.build(ctx, req); err != nil {
		return domain.Result{Err: err}
	}

	recipe, err := os.ReadFile(filepath.Join(req.Workspace, o.cfg.Dockerfile))
	if err != nil {
		return domain.Result{Err: fmt.Errorf("read build recipe: %w", err)}
	}
	containerPort := ResolvePortOr(string(recipe), req.HostPort)

	o.logger.InfoContext(ctx, fmt.Sprintf("-> Running Docker container %s...", req.ImageName),
		"container_port", containerPort, "host_port", req.HostPort)
	id, err := o.engine.RunContainer(ctx, domain.RunSpec{
		Image:         req.ImageName,
		Name:          req.ImageName,
		ContainerPort: containerPort,
		HostPort:      req.HostPort,
	})
	if err != nil {
		// The container holding the name was created after claimName.
		if !errors.Is(err, domain.ErrNameConflict) {
			o.cleanup.Rollback(ctx, req.ImageName)
		}
		return domain.Result{Err: &domain.EngineError{Op: "run container", Err: err}}
	}

	report, err := o.health.Verify(ctx, id)
	if err != nil {
		o.cleanup.Rollback(ctx, req.ImageName)
		return domain.Result{Err: &domain.EngineError{Op: "check container", Err: err}}
	}
	if !report.Healthy {
		o.logger.ErrorContext(ctx, fmt.Sprintf("Container %s exited unexpectedly. Logs: %s", req.ImageName, report.Logs))
		o.cleanup.Rollback(ctx, req.ImageName)
		return domain.Result{
			Err:  &domain.ContainerUnhealthyError{State: report.State, Logs: report.Logs},
			Logs: report.Logs,
		}
	}

	if logs, err := o.engine.ContainerLogs(ctx, id); err != nil {
		o.logger.WarnContext(ctx, "failed to read container logs", "id", id, "error", err)
	} else {
		o.logger.InfoContext(ctx, "Container logs: "+logs)
	}

	details, err := o.engine.InspectContainer(ctx, id)
	if err != nil {
		o.cleanup.Rollback(ctx, req.ImageName)
		return domain.Result{Err: &domain.EngineError{Op: "inspect container", Err: err}}
	}

	urls := lo.FilterMap(details.Ports, func(p domain.PortBinding, _ int) (string, bool) {
		return fmt.Sprintf("http://%s:%s", o.cfg.HostAddress, p.HostPort), p.HostPort != ""
	})
	o.logger.InfoContext(ctx, fmt.Sprintf("-> Container %s started successfully.", req.ImageName), "urls", urls)
	return domain.Result{URLs: urls}
}

// claimName fails with ErrNameConflict when a container, running or not,
// already holds name. It runs before the build because rebuilding the tag
// would leave that container on a dangling image, which the terminal prune
// then removes.
func (o *Orchestrator) claimName(ctx context.Context, name string) error {
	existing, err := o.engine.ListContainers(ctx, domain.ContainerFilter{All: true, Name: name})
	if err != nil {
		return &domain.EngineError{Op: "list containers", Err: err}
	}
	if len(existing) > 0 {
		o.logger.WarnContext(ctx, fmt.Sprintf("Container name %s is already in use", name), "id", existing[0].ID)
		return &domain.EngineError{Op: "run container", Err: domain.ErrNameConflict}
	}
	return nil
}

// build runs the image build and drains its output into the log.
func (o *Orchestrator) build(ctx context.Context, req domain.BuildRequest) error {
	o.logger.InfoContext(ctx, "-> Building Docker image...", "image", req.ImageName)

	stream, err := o.engine.BuildImage(ctx, req.Workspace, o.cfg.Dockerfile, req.ImageName)
	if err != nil {
		return &domain.EngineError{Op: "build image", Err: err}
	}
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &domain.EngineError{Op: "read build output", Err: err}
		}
		if ev.Fatal() {
			msg := strings.TrimSpace(ev.Error)
			o.logger.ErrorContext(ctx, "Build error: "+msg)
			return &domain.BuildFailedError{Message: msg}
		}
		if line := strings.TrimSpace(ev.Stream); line != "" {
			o.logger.InfoContext(ctx, "Build log: "+line)
		}
	}

	o.logger.InfoContext(ctx, fmt.Sprintf("-> Docker image %s built successfully.", req.ImageName))
	return nil
}

func outcome(err error) string {
	var (
		buildErr     *domain.BuildFailedError
		engineErr    *domain.EngineError
		unhealthyErr *domain.ContainerUnhealthyError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &buildErr):
		return "build_failed"
	case errors.As(err, &engineErr):
		return "engine_error"
	case errors.As(err, &unhealthyErr):
		return "unhealthy"
	default:
		return "error"
	}
}
