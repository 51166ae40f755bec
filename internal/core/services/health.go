package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

// DefaultSettleDelay is how long a container is given to crash before its
// state is checked. It is a heuristic, not a liveness guarantee.
const DefaultSettleDelay = time.Second

// HealthReport is the outcome of a health check.
type HealthReport struct {
	Healthy bool
	State   domain.ContainerState
	// Logs holds the container output when the check failed.
	Logs string
}

// HealthVerifier decides whether a freshly started container stayed up.
type HealthVerifier struct {
	engine ports.ContainerEngine
	settle time.Duration
	logger *slog.Logger
}

// NewHealthVerifier creates a verifier that waits settle before checking.
func NewHealthVerifier(engine ports.ContainerEngine, settle time.Duration, logger *slog.Logger) *HealthVerifier {
	if settle < 0 {
		settle = 0
	}
	return &HealthVerifier{
		engine: engine,
		settle: settle,
		logger: logger.With(componentKey, "health"),
	}
}

// SettleDelay returns the configured wait before the state check.
func (v *HealthVerifier) SettleDelay() time.Duration {
	return v.settle
}

// Verify waits out the settle delay and reports whether container id is
// still running. Output of a stopped container is fetched for diagnostics.
func (v *HealthVerifier) Verify(ctx context.Context, id string) (HealthReport, error) {
	if v.settle > 0 {
		timer := time.NewTimer(v.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return HealthReport{}, ctx.Err()
		case <-timer.C:
		}
	}

	details, err := v.engine.InspectContainer(ctx, id)
	if err != nil {
		return HealthReport{}, err
	}
	if details.State == domain.StateRunning {
		return HealthReport{Healthy: true, State: details.State}, nil
	}

	report := HealthReport{State: details.State}
	logs, err := v.engine.ContainerLogs(ctx, id)
	if err != nil {
		v.logger.WarnContext(ctx, "failed to read container logs", "id", id, "error", err)
	} else {
		report.Logs = logs
	}
	return report, nil
}
