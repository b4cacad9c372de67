package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordReplayStarted does nothing.
func (NoopMetrics) RecordReplayStarted(_ context.Context, _ bool) {}

// RecordReplaySuperseded does nothing.
func (NoopMetrics) RecordReplaySuperseded(_ context.Context, _ time.Duration, _ error) {}

// RecordReplayFinished does nothing.
func (NoopMetrics) RecordReplayFinished(_ context.Context, _ time.Duration, _ error) {}

// RecordCheckpointRemoved does nothing.
func (NoopMetrics) RecordCheckpointRemoved(_ context.Context, _, _ int) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartReplaySpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartReplaySpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartRemoveSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRemoveSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
