package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records replay coordination metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordReplayStarted records a replay task being started.
	RecordReplayStarted(ctx context.Context, complete bool)

	// RecordReplaySuperseded records a running task being cancelled for a
	// newer request, with how long the cancellation wait took.
	RecordReplaySuperseded(ctx context.Context, wait time.Duration, err error)

	// RecordReplayFinished records natural completion of a replay task.
	RecordReplayFinished(ctx context.Context, duration time.Duration, err error)

	// RecordCheckpointRemoved records a removal with its deleted and failed
	// artifact counts.
	RecordCheckpointRemoved(ctx context.Context, removed, failed int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	replaysStarted    metric.Int64Counter
	replaysSuperseded metric.Int64Counter
	cancelWait        metric.Float64Histogram
	replaysFinished   metric.Int64Counter
	replaysFailed     metric.Int64Counter
	replayDuration    metric.Float64Histogram
	artifactsRemoved  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("chanreplay")

	replaysStarted, err := meter.Int64Counter("chanreplay.replay.started",
		metric.WithDescription("Number of replay tasks started"),
	)
	if err != nil {
		return nil, err
	}

	replaysSuperseded, err := meter.Int64Counter("chanreplay.replay.superseded",
		metric.WithDescription("Number of running replay tasks cancelled by a newer request"),
	)
	if err != nil {
		return nil, err
	}

	cancelWait, err := meter.Float64Histogram("chanreplay.replay.cancel_wait_ms",
		metric.WithDescription("Time spent waiting for a superseded replay to stop"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	replaysFinished, err := meter.Int64Counter("chanreplay.replay.finished",
		metric.WithDescription("Number of replay tasks that completed naturally"),
	)
	if err != nil {
		return nil, err
	}

	replaysFailed, err := meter.Int64Counter("chanreplay.replay.failed",
		metric.WithDescription("Number of replay tasks that ended on a fault"),
	)
	if err != nil {
		return nil, err
	}

	replayDuration, err := meter.Float64Histogram("chanreplay.replay.duration_ms",
		metric.WithDescription("Replay task run time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	artifactsRemoved, err := meter.Int64Counter("chanreplay.checkpoint.removed",
		metric.WithDescription("Number of checkpoint artifacts removal attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		replaysStarted:    replaysStarted,
		replaysSuperseded: replaysSuperseded,
		cancelWait:        cancelWait,
		replaysFinished:   replaysFinished,
		replaysFailed:     replaysFailed,
		replayDuration:    replayDuration,
		artifactsRemoved:  artifactsRemoved,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordReplayStarted records a replay start.
func (m *otelMetrics) RecordReplayStarted(ctx context.Context, complete bool) {
	m.replaysStarted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("complete", complete)))
}

// RecordReplaySuperseded records a supersede and its cancellation wait.
func (m *otelMetrics) RecordReplaySuperseded(ctx context.Context, wait time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("stopped", err == nil))
	m.replaysSuperseded.Add(ctx, 1, attrs)
	m.cancelWait.Record(ctx, float64(wait.Milliseconds()), attrs)
}

// RecordReplayFinished records a natural completion.
func (m *otelMetrics) RecordReplayFinished(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.replaysFinished.Add(ctx, 1, attrs)
	m.replayDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.replaysFailed.Add(ctx, 1)
	}
}

// RecordCheckpointRemoved records removal outcomes.
func (m *otelMetrics) RecordCheckpointRemoved(ctx context.Context, removed, failed int) {
	if removed > 0 {
		m.artifactsRemoved.Add(ctx, int64(removed), metric.WithAttributes(attribute.Bool("success", true)))
	}
	if failed > 0 {
		m.artifactsRemoved.Add(ctx, int64(failed), metric.WithAttributes(attribute.Bool("success", false)))
	}
}
