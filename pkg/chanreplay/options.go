package chanreplay

import (
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/history"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/observability"
)

// managerConfig holds configuration for a Manager.
type managerConfig struct {
	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
	history       history.Store
	factory       any
	cancelTimeout time.Duration
	pollInterval  time.Duration
	fs            afero.Fs
}

// defaultManagerConfig returns the default manager configuration.
func defaultManagerConfig() managerConfig {
	return managerConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures a Manager.
type Option func(*managerConfig)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Default: no metrics.
//
// Example:
//
//	m := chanreplay.NewManager[vertex.Name](layout, bus,
//	    chanreplay.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *managerConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager sets the tracer used for replay and remove spans.
// Default: no tracing.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *managerConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithHistory journals replay lifecycle transitions to store.
// Default: no journal. The manager does not close the store.
func WithHistory(store history.Store) Option {
	return func(c *managerConfig) {
		c.history = store
	}
}

// WithTaskFactory replaces the default FileTask factory. The factory's
// vertex type must match the manager's; NewManager panics otherwise.
func WithTaskFactory[V Vertex](f TaskFactory[V]) Option {
	return func(c *managerConfig) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithCancelTimeout bounds how long ReplayCheckpoint waits for a
// superseded task to stop. Default: 0, wait until the caller's context ends.
func WithCancelTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		if d > 0 {
			c.cancelTimeout = d
		}
	}
}

// WithPollInterval sets how often partial replays re-check for segments.
// Default: config.DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *managerConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithFS sets the filesystem used by FromSettings. NewManager takes the
// filesystem from its layout and ignores this option.
func WithFS(fs afero.Fs) Option {
	return func(c *managerConfig) {
		c.fs = fs
	}
}
