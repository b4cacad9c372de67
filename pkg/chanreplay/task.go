package chanreplay

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
)

// Vertex is the constraint on vertex identifiers. String must render a
// filesystem-safe name; it is embedded in checkpoint artifact names.
type Vertex interface {
	comparable
	String() string
}

// Notifier receives natural completions from replay tasks.
type Notifier[V Vertex] interface {
	// ReplayFinished is called exactly once when the attempt identified by
	// attempt runs out of checkpoint data. err is nil on success and holds
	// the fault otherwise. It is never called for a cancelled attempt.
	ReplayFinished(vertex V, attempt string, err error)
}

// Task is one replay attempt for one vertex.
type Task interface {
	// Start begins asynchronous execution and returns immediately.
	// Only the first call has any effect, and none at all once the task
	// has been cancelled.
	Start()

	// CancelAndWait requests cooperative cancellation and blocks until the
	// task has ceased all activity, including dispatches in flight. On a
	// task that never started it moves the task straight to its terminal
	// state. Returns ctx.Err() if ctx ends first; the task keeps stopping
	// in the background. It may be called again, and then waits for the
	// same stop.
	CancelAndWait(ctx context.Context) error
}

// TaskConfig is everything a replay task is built from.
type TaskConfig[V Vertex] struct {
	Notifier   Notifier[V]
	Vertex     V
	Attempt    string
	Layout     *checkpoint.Layout
	Dispatcher transfer.Dispatcher
	// Complete selects the final artifact as the start point; otherwise
	// the task replays published partial segments.
	Complete     bool
	// Logger carries the vertex and attempt fields. Tasks log at debug.
	Logger       *slog.Logger
	PollInterval time.Duration
}

// TaskFactory builds a replay task. The manager calls it once per request.
type TaskFactory[V Vertex] func(cfg TaskConfig[V]) Task
