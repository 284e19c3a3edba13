package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CycleMetricsMeterName is the name used for the publication cycle meter
	CycleMetricsMeterName = "github.com/snipmux/snipmux/cycle"
)

// CycleMetrics holds the OpenTelemetry instruments for publication cycles
type CycleMetrics struct {
	cycleDuration     metric.Float64Histogram
	cyclesTotal       metric.Int64Counter
	snippetsPublished metric.Int64Gauge
	sourceErrors      metric.Int64Gauge
	sourceSnippets    metric.Int64Gauge
}

// NewCycleMetrics creates a new CycleMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewCycleMetrics(provider metric.MeterProvider) (*CycleMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CycleMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"snipmux_cycle_duration_seconds",
		metric.WithDescription("Duration of publication cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	cyclesTotal, err := meter.Int64Counter(
		"snipmux_cycles_total",
		metric.WithDescription("Total number of completed publication cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	snippetsPublished, err := meter.Int64Gauge(
		"snipmux_snippets_published",
		metric.WithDescription("Number of snippets in the published aggregate"),
		metric.WithUnit("{snippet}"),
	)
	if err != nil {
		return nil, err
	}

	sourceErrors, err := meter.Int64Gauge(
		"snipmux_source_errors",
		metric.WithDescription("Number of sources that finished the last cycle in error"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}

	sourceSnippets, err := meter.Int64Gauge(
		"snipmux_source_snippets",
		metric.WithDescription("Number of snippets loaded from each source"),
		metric.WithUnit("{snippet}"),
	)
	if err != nil {
		return nil, err
	}

	return &CycleMetrics{
		cycleDuration:     cycleDuration,
		cyclesTotal:       cyclesTotal,
		snippetsPublished: snippetsPublished,
		sourceErrors:      sourceErrors,
		sourceSnippets:    sourceSnippets,
	}, nil
}

// RecordCycle records the duration and outcome of one publication cycle.
func (m *CycleMetrics) RecordCycle(ctx context.Context, trigger string, duration time.Duration, hasErrors bool) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("trigger", trigger),
		attribute.Bool("has_errors", hasErrors),
	}

	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.cyclesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPublished records the totals of the currently published aggregate.
func (m *CycleMetrics) RecordPublished(ctx context.Context, totalSnippets, errorCount int64) {
	if m == nil {
		return
	}

	m.snippetsPublished.Record(ctx, totalSnippets)
	m.sourceErrors.Record(ctx, errorCount)
}

// RecordSourceSnippets records the per-source snippet count.
func (m *CycleMetrics) RecordSourceSnippets(ctx context.Context, sourceID string, count int64) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", sourceID),
	}

	m.sourceSnippets.Record(ctx, count, metric.WithAttributes(attrs...))
}
