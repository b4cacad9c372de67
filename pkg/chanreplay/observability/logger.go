// Package observability provides structured logging, metrics, and tracing
// for checkpoint replay coordination.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds replay context to a logger.
// Returns a new logger with vertex and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "9f86d081", "01HZX3...")
//	enriched.Info("reading segment") // includes vertex, attempt
func EnrichLogger(logger *slog.Logger, vertex, attempt string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("vertex", vertex),
		slog.String("attempt", attempt),
	)
}

// LogReplayStart logs the start of a replay attempt.
func LogReplayStart(logger *slog.Logger, vertex, attempt string, complete bool) {
	if logger == nil {
		return
	}
	logger.Info("replaying checkpoint",
		slog.String("vertex", vertex),
		slog.String("attempt", attempt),
		slog.Bool("complete", complete),
	)
}

// LogReplaySuperseded logs that a running attempt is being cancelled in
// favour of a new one.
func LogReplaySuperseded(logger *slog.Logger, vertex, previous, attempt string) {
	if logger == nil {
		return
	}
	logger.Info("replay already running, cancelling it first",
		slog.String("vertex", vertex),
		slog.String("previous_attempt", previous),
		slog.String("attempt", attempt),
	)
}

// LogReplayFinished logs natural completion of a replay attempt.
func LogReplayFinished(logger *slog.Logger, vertex, attempt string, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("replay failed",
			slog.String("vertex", vertex),
			slog.String("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("replay finished",
		slog.String("vertex", vertex),
		slog.String("attempt", attempt),
	)
}

// LogStaleCompletion logs a completion callback from an attempt that is no
// longer registered.
func LogStaleCompletion(logger *slog.Logger, vertex, attempt string) {
	if logger == nil {
		return
	}
	logger.Debug("ignoring completion of superseded replay",
		slog.String("vertex", vertex),
		slog.String("attempt", attempt),
	)
}

// LogCancelError logs a superseded attempt that did not stop in time.
func LogCancelError(logger *slog.Logger, vertex, previous string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("superseded replay did not stop",
		slog.String("vertex", vertex),
		slog.String("previous_attempt", previous),
		slog.String("error", err.Error()),
	)
}

// LogCheckpointRemoved logs a checkpoint removal. failures is non-nil when
// some deletions failed (non-fatal).
func LogCheckpointRemoved(logger *slog.Logger, vertex string, removed []string, failures error) {
	if logger == nil {
		return
	}
	if failures != nil {
		logger.Warn("checkpoint removal incomplete",
			slog.String("vertex", vertex),
			slog.Any("removed", removed),
			slog.String("error", failures.Error()),
		)
		return
	}
	logger.Debug("checkpoint removed",
		slog.String("vertex", vertex),
		slog.Any("removed", removed),
	)
}

// LogHistoryError logs a history write failure (non-fatal).
func LogHistoryError(logger *slog.Logger, vertex, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("replay history write failed",
		slog.String("vertex", vertex),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
