package chanreplay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/config"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/vertex"
)

// TaskState is the lifecycle state of a FileTask.
type TaskState int

// FileTask states. Finished and Stopped are terminal.
const (
	TaskCreated TaskState = iota
	TaskRunning
	TaskCancelling
	TaskFinished
	TaskStopped
)

// String returns the state name.
func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskRunning:
		return "running"
	case TaskCancelling:
		return "cancelling"
	case TaskFinished:
		return "finished"
	case TaskStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FileTask replays a vertex's checkpoint artifacts from its layout into
// the dispatcher. It is the default task built by a Manager.
//
// A complete replay reads the final artifact. A partial replay reads
// segments 0, 1, ... in order; while the part marker exists it polls for
// the next segment, and once the marker is gone the data is exhausted.
type FileTask[V Vertex] struct {
	cfg  TaskConfig[V]
	name string

	mu     sync.Mutex
	state  TaskState
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Task = (*FileTask[vertex.Name])(nil)

// NewFileTask creates a task in the Created state. It matches TaskFactory.
func NewFileTask[V Vertex](cfg TaskConfig[V]) Task {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = transfer.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &FileTask[V]{
		cfg:  cfg,
		name: cfg.Vertex.String(),
		done: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (t *FileTask[V]) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed once the task has stopped and, after a natural finish,
// the completion callback has returned.
func (t *FileTask[V]) Done() <-chan struct{} {
	return t.done
}

// Start implements Task.
func (t *FileTask[V]) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskCreated {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.state = TaskRunning
	go t.run(ctx)
}

// CancelAndWait implements Task.
func (t *FileTask[V]) CancelAndWait(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case TaskCreated:
		t.state = TaskStopped
		close(t.done)
		t.mu.Unlock()
		return nil
	case TaskRunning:
		t.state = TaskCancelling
		t.cancel()
	case TaskFinished:
		// Dispatching is over; only the completion callback may remain.
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *FileTask[V]) run(ctx context.Context) {
	err := t.replay(ctx)

	t.mu.Lock()
	natural := t.state == TaskRunning
	t.cancel()
	if !natural {
		t.state = TaskStopped
		t.mu.Unlock()
		t.cfg.Logger.Debug("replay cancelled")
		close(t.done)
		return
	}
	t.state = TaskFinished
	t.mu.Unlock()

	if err != nil {
		t.cfg.Logger.Debug("replay finished", slog.String("error", err.Error()))
	} else {
		t.cfg.Logger.Debug("replay finished")
	}

	if t.cfg.Notifier != nil {
		t.cfg.Notifier.ReplayFinished(t.cfg.Vertex, t.cfg.Attempt, err)
	}
	close(t.done)
}

func (t *FileTask[V]) replay(ctx context.Context) error {
	layout := t.cfg.Layout
	if err := checkpoint.ValidateVertexName(t.name); err != nil {
		return &ReplayError{Vertex: t.name, Err: err}
	}
	if t.cfg.Complete {
		return t.replayArtifact(ctx, layout.Path(t.name, checkpoint.ArtifactFinal))
	}

	for n := 0; ; n++ {
		path := layout.SegmentPath(t.name, n)
		ok, err := t.awaitSegment(ctx, path)
		if err != nil || !ok {
			return err
		}
		if err := t.replayArtifact(ctx, path); err != nil {
			return err
		}
	}
}

// awaitSegment reports whether the segment at path is available, polling
// while the writer's part marker exists. false means the data is exhausted.
func (t *FileTask[V]) awaitSegment(ctx context.Context, path string) (bool, error) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if t.exists(path) {
			return true, nil
		}
		if !t.cfg.Layout.Exists(t.name, checkpoint.ArtifactPart) {
			// The writer may have published between the two checks.
			return t.exists(path), nil
		}
		t.cfg.Logger.Debug("waiting for segment", slog.String("path", path))
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *FileTask[V]) exists(path string) bool {
	_, err := t.cfg.Layout.FS().Stat(path)
	return err == nil
}

func (t *FileTask[V]) replayArtifact(ctx context.Context, path string) error {
	t.cfg.Logger.Debug("replaying artifact", slog.String("path", path))
	err := checkpoint.ReadArtifact(t.cfg.Layout.FS(), path, func(env transfer.Envelope) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return t.cfg.Dispatcher.Dispatch(ctx, env)
	})
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return &ReplayError{Vertex: t.name, Path: path, Err: err}
}
