package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records build-and-run outcomes.
type Metrics struct {
	buildDuration metric.Float64Histogram
	buildTotal    metric.Int64Counter
	prunedImages  metric.Int64Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	buildDuration, err := meter.Float64Histogram(
		"lighthouse_build_duration_seconds",
		metric.WithDescription("Duration of build-and-run requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	buildTotal, err := meter.Int64Counter(
		"lighthouse_builds_total",
		metric.WithDescription("Total number of build-and-run requests"),
	)
	if err != nil {
		return nil, err
	}

	prunedImages, err := meter.Int64Counter(
		"lighthouse_pruned_images_total",
		metric.WithDescription("Total number of dangling images removed"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		buildDuration: buildDuration,
		buildTotal:    buildTotal,
		prunedImages:  prunedImages,
	}, nil
}

// RecordBuild records metrics for a finished request
func (m *Metrics) RecordBuild(ctx context.Context, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.buildDuration.Record(ctx, duration.Seconds(), attrs)
	m.buildTotal.Add(ctx, 1, attrs)
}

// RecordPrune records the images removed by one prune sweep
func (m *Metrics) RecordPrune(ctx context.Context, removed int) {
	if m == nil || removed == 0 {
		return
	}
	m.prunedImages.Add(ctx, int64(removed))
}
