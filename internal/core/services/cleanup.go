package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

// CleanupManager removes containers and images left behind by a request.
// Every operation tolerates resources that are already gone, and removal
// failures are logged rather than returned.
type CleanupManager struct {
	engine  ports.ContainerEngine
	logger  *slog.Logger
	metrics *Metrics
}

// NewCleanupManager creates a cleanup manager. metrics may be nil.
func NewCleanupManager(engine ports.ContainerEngine, logger *slog.Logger, metrics *Metrics) *CleanupManager {
	return &CleanupManager{
		engine:  engine,
		logger:  logger.With(componentKey, "cleanup"),
		metrics: metrics,
	}
}

// Rollback stops and removes every container created from imageName, then
// force-removes the image.
func (m *CleanupManager) Rollback(ctx context.Context, imageName string) {
	m.removeContainersOf(ctx, imageName)

	if err := m.engine.RemoveImage(ctx, imageName, true); err != nil && !errors.Is(err, domain.ErrNotFound) {
		m.report(ctx, &domain.CleanupError{Resource: "image", ID: imageName, Err: err})
		return
	}
	m.logger.InfoContext(ctx, "rolled back image", "image", imageName)
}

// PruneDangling removes every untagged image together with the containers
// still using it, and returns the number of images removed. Failures skip
// the affected item; the sweep always runs to the end.
func (m *CleanupManager) PruneDangling(ctx context.Context) int {
	images, err := m.engine.ListDanglingImages(ctx)
	if err != nil {
		m.report(ctx, &domain.CleanupError{Resource: "image list", Err: err})
		return 0
	}

	removed := 0
	for _, img := range images {
		m.removeContainersOf(ctx, img.ID)

		if err := m.engine.RemoveImage(ctx, img.ID, true); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				m.report(ctx, &domain.CleanupError{Resource: "dangling image", ID: img.ID, Err: err})
			}
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.InfoContext(ctx, "pruned dangling images", "count", removed)
	}
	m.metrics.RecordPrune(ctx, removed)
	return removed
}

func (m *CleanupManager) removeContainersOf(ctx context.Context, ancestor string) {
	containers, err := m.engine.ListContainers(ctx, domain.ContainerFilter{All: true, Ancestor: ancestor})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.report(ctx, &domain.CleanupError{Resource: "container list", ID: ancestor, Err: err})
		}
		return
	}

	for _, c := range containers {
		if err := m.engine.StopContainer(ctx, c.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			m.logger.WarnContext(ctx, "failed to stop container", "id", c.ID, "error", err)
		}
		if err := m.engine.RemoveContainer(ctx, c.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			m.report(ctx, &domain.CleanupError{Resource: "container", ID: c.ID, Err: err})
		}
	}
}

func (m *CleanupManager) report(ctx context.Context, err *domain.CleanupError) {
	m.logger.ErrorContext(ctx, "cleanup failed", "error", err)
}
