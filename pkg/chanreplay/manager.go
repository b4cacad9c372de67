package chanreplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/config"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/history"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/observability"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/registry"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
)

// replay is a registered attempt. Fields are set before the entry is
// stored; only drained is closed afterwards.
type replay struct {
	attempt   string
	task      Task
	complete  bool
	requested time.Time
	// drained is closed once every task registered for the vertex before
	// this one has stopped.
	drained chan struct{}
}

// Manager coordinates checkpoint replays. At most one replay task is
// registered per vertex; a new request for a vertex cancels and waits for
// the registered one before starting its own.
//
// Manager is safe for concurrent use.
type Manager[V Vertex] struct {
	layout     *checkpoint.Layout
	dispatcher transfer.Dispatcher
	running    *registry.Registry[V, *replay]
	// draining holds withdrawn attempts whose predecessors may still be
	// stopping. A new request for the vertex waits on them.
	draining *registry.Registry[V, *replay]
	factory  TaskFactory[V]

	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
	history       history.Store
	ownsHistory   bool
	cancelTimeout time.Duration
	pollInterval  time.Duration

	closed atomic.Bool
}

// NewManager creates a manager reading checkpoints from layout and
// replaying them into dispatcher.
//
// Panics if layout is nil or a WithTaskFactory option was built for a
// different vertex type.
func NewManager[V Vertex](layout *checkpoint.Layout, dispatcher transfer.Dispatcher, opts ...Option) *Manager[V] {
	if layout == nil {
		panic("chanreplay: nil layout")
	}
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newManager[V](layout, dispatcher, cfg)
}

// FromSettings creates a manager from resolved settings. Unless a
// WithHistory option is given, history goes to a SQLite file at
// settings.HistoryPath, or to memory when it is empty; either store is
// closed by Shutdown. settings.Telemetry installs OpenTelemetry metrics
// and spans, which WithMetrics and WithSpanManager still override.
func FromSettings[V Vertex](settings config.Settings, dispatcher transfer.Dispatcher, opts ...Option) (*Manager[V], error) {
	cfg := defaultManagerConfig()
	cfg.cancelTimeout = settings.CancelTimeout
	cfg.pollInterval = settings.PollInterval
	if settings.Telemetry {
		cfg.metrics = observability.NewMetricsRecorder()
		cfg.spans = observability.NewSpanManager()
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	owns := false
	if cfg.history == nil {
		if settings.HistoryPath == "" {
			cfg.history = history.NewMemoryStore()
		} else {
			store, err := history.NewSQLiteStore(settings.HistoryPath)
			if err != nil {
				return nil, fmt.Errorf("open replay history: %w", err)
			}
			cfg.history = store
		}
		owns = true
	}

	m := newManager[V](checkpoint.NewLayout(cfg.fs, settings.CheckpointDirectory), dispatcher, cfg)
	m.ownsHistory = owns
	return m, nil
}

func newManager[V Vertex](layout *checkpoint.Layout, dispatcher transfer.Dispatcher, cfg managerConfig) *Manager[V] {
	factory := TaskFactory[V](NewFileTask[V])
	if cfg.factory != nil {
		f, ok := cfg.factory.(TaskFactory[V])
		if !ok {
			panic(fmt.Sprintf("chanreplay: task factory %T does not match vertex type", cfg.factory))
		}
		factory = f
	}
	if dispatcher == nil {
		dispatcher = transfer.Discard
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = config.DefaultPollInterval
	}

	return &Manager[V]{
		layout:        layout,
		dispatcher:    dispatcher,
		running:       registry.New[V, *replay](),
		draining:      registry.New[V, *replay](),
		factory:       factory,
		logger:        cfg.logger,
		metrics:       cfg.metrics,
		spans:         cfg.spans,
		history:       cfg.history,
		cancelTimeout: cfg.cancelTimeout,
		pollInterval:  cfg.pollInterval,
	}
}

// Layout returns the checkpoint layout the manager reads from.
func (m *Manager[V]) Layout() *checkpoint.Layout {
	return m.layout
}

// HasCompleteCheckpointAvailable reports whether the final artifact of
// vertex exists.
func (m *Manager[V]) HasCompleteCheckpointAvailable(vertex V) bool {
	return m.layout.HasComplete(vertex.String())
}

// HasPartialCheckpointAvailable reports whether a segment-0 or part
// artifact of vertex exists. It does not consider the final artifact.
func (m *Manager[V]) HasPartialCheckpointAvailable(vertex V) bool {
	return m.layout.HasPartial(vertex.String())
}

// CheckpointState classifies the artifacts of vertex.
func (m *Manager[V]) CheckpointState(vertex V) checkpoint.State {
	return m.layout.Classify(vertex.String())
}

// ReplayCheckpoint starts replaying the checkpoint of vertex.
//
// If a replay for vertex is already registered it is cancelled and this
// call blocks until it has stopped, along with any older task that
// replay was itself still waiting on. The wait is bounded by ctx and the
// WithCancelTimeout option; if it ends first the new attempt is withdrawn
// without starting and a *CancelError is returned.
//
// A vertex whose name cannot be embedded in an artifact file name is
// rejected with checkpoint.ErrInvalidVertexName. A request that overlaps
// Shutdown is withdrawn and returns ErrManagerClosed.
//
// The replay itself runs asynchronously. Completion is reported to the
// manager through ReplayFinished.
func (m *Manager[V]) ReplayCheckpoint(ctx context.Context, vertex V) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if m.closed.Load() {
		return ErrManagerClosed
	}

	name := vertex.String()
	if err := checkpoint.ValidateVertexName(name); err != nil {
		return err
	}
	complete := m.HasCompleteCheckpointAvailable(vertex)
	entry := &replay{
		attempt:   ulid.Make().String(),
		complete:  complete,
		requested: time.Now(),
		drained:   make(chan struct{}),
	}
	entry.task = m.factory(TaskConfig[V]{
		Notifier:     m,
		Vertex:       vertex,
		Attempt:      entry.attempt,
		Layout:       m.layout,
		Dispatcher:   m.dispatcher,
		Complete:     complete,
		Logger:       observability.EnrichLogger(m.logger, name, entry.attempt),
		PollInterval: m.pollInterval,
	})

	ctx, span := m.spans.StartReplaySpan(ctx, name, entry.attempt)
	defer func() { m.spans.EndSpanWithError(span, err) }()

	previous, registered := m.running.Swap(vertex, entry)
	loaded := registered
	if !loaded {
		previous, loaded = m.draining.Get(vertex)
	}
	if loaded {
		if err := m.supersede(ctx, vertex, previous, entry, registered); err != nil {
			return err
		}
	} else {
		close(entry.drained)
	}

	// Shutdown may have taken its snapshot before this entry was stored.
	if m.closed.Load() {
		m.running.DeleteIf(vertex, func(r *replay) bool { return r == entry })
		_ = entry.task.CancelAndWait(context.Background())
		m.record(ctx, history.Entry{
			Vertex:   name,
			Attempt:  entry.attempt,
			Status:   history.StatusWithdrawn,
			Complete: complete,
			Error:    ErrManagerClosed.Error(),
		})
		return ErrManagerClosed
	}

	// A later request may already have replaced and stopped this task
	// while we waited; its Start is then a no-op.
	if current, ok := m.running.Get(vertex); !ok || current != entry {
		entry.task.Start()
		return nil
	}

	observability.LogReplayStart(m.logger, name, entry.attempt, complete)
	m.metrics.RecordReplayStarted(ctx, complete)
	m.record(ctx, history.Entry{
		Vertex:   name,
		Attempt:  entry.attempt,
		Status:   history.StatusStarted,
		Complete: complete,
	})
	entry.task.Start()
	return nil
}

// supersede cancels previous and waits until it and everything it was
// waiting on have stopped, then closes entry.drained. registered is false
// when previous is a withdrawn attempt rather than the displaced
// registration. On timeout entry is withdrawn and a *CancelError returned.
func (m *Manager[V]) supersede(ctx context.Context, vertex V, previous, entry *replay, registered bool) error {
	name := vertex.String()
	if registered {
		observability.LogReplaySuperseded(m.logger, name, previous.attempt, entry.attempt)
		m.spans.AddSpanEvent(ctx, "superseded",
			attribute.String("replay.previous_attempt", previous.attempt),
		)
	}

	waitCtx := ctx
	if m.cancelTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.cancelTimeout)
		defer cancel()
	}

	elapsed := observability.TimedOperation()
	err := previous.task.CancelAndWait(waitCtx)
	if err == nil {
		err = awaitDrained(waitCtx, previous)
	}
	if registered {
		m.metrics.RecordReplaySuperseded(ctx, elapsed(), err)
		m.record(ctx, history.Entry{
			Vertex:   name,
			Attempt:  previous.attempt,
			Status:   history.StatusSuperseded,
			Complete: previous.complete,
		})
	}
	if err == nil {
		close(entry.drained)
		return nil
	}

	observability.LogCancelError(m.logger, name, previous.attempt, err)
	// Park entry where later requests find it before it leaves running.
	m.draining.Register(vertex, entry)
	m.running.DeleteIf(vertex, func(r *replay) bool { return r == entry })
	// Never started, so this returns immediately.
	_ = entry.task.CancelAndWait(context.Background())
	go m.drain(vertex, previous, entry)
	m.record(ctx, history.Entry{
		Vertex:   name,
		Attempt:  entry.attempt,
		Status:   history.StatusWithdrawn,
		Complete: entry.complete,
		Error:    err.Error(),
	})
	return &CancelError{
		Vertex:   name,
		Previous: previous.attempt,
		Attempt:  entry.attempt,
		Err:      err,
	}
}

// drain closes entry.drained once previous has stopped and drained, then
// retires entry from the draining set.
func (m *Manager[V]) drain(vertex V, previous, entry *replay) {
	_ = previous.task.CancelAndWait(context.Background())
	<-previous.drained
	close(entry.drained)
	m.draining.DeleteIf(vertex, func(r *replay) bool { return r == entry })
}

// awaitDrained waits for r.drained or ctx, preferring drained when both
// are ready.
func awaitDrained(ctx context.Context, r *replay) error {
	select {
	case <-r.drained:
		return nil
	default:
	}
	select {
	case <-r.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReplayFinished implements Notifier. The registration for vertex is
// removed only if it still belongs to attempt; completions of superseded
// attempts are ignored.
func (m *Manager[V]) ReplayFinished(vertex V, attempt string, err error) {
	name := vertex.String()

	var finished *replay
	removed := m.running.DeleteIf(vertex, func(r *replay) bool {
		if r.attempt != attempt {
			return false
		}
		finished = r
		return true
	})
	if !removed {
		observability.LogStaleCompletion(m.logger, name, attempt)
		return
	}

	ctx := context.Background()
	observability.LogReplayFinished(m.logger, name, attempt, err)
	m.metrics.RecordReplayFinished(ctx, time.Since(finished.requested), err)

	entry := history.Entry{
		Vertex:   name,
		Attempt:  attempt,
		Status:   history.StatusFinished,
		Complete: finished.complete,
	}
	if err != nil {
		entry.Status = history.StatusFailed
		entry.Error = err.Error()
	}
	m.record(ctx, entry)
}

// RemoveCheckpoint deletes the checkpoint artifacts of vertex. It does
// not touch any running replay. Per-artifact failures are reported in the
// result and never stop the remaining deletions.
func (m *Manager[V]) RemoveCheckpoint(vertex V) checkpoint.RemoveResult {
	name := vertex.String()
	ctx, span := m.spans.StartRemoveSpan(context.Background(), name)

	result := m.layout.Remove(name)
	failures := result.Err()

	removed := make([]string, 0, len(result.Outcomes))
	for _, a := range result.Removed() {
		removed = append(removed, checkpoint.Name(name, a.String()))
	}
	observability.LogCheckpointRemoved(m.logger, name, removed, failures)
	m.metrics.RecordCheckpointRemoved(ctx, len(removed), result.Failed())
	m.spans.EndSpanWithError(span, failures)
	return result
}

// Running reports whether a replay is registered for vertex.
func (m *Manager[V]) Running(vertex V) bool {
	return m.running.Has(vertex)
}

// Active returns the vertices with a registered replay.
func (m *Manager[V]) Active() []V {
	return m.running.Keys()
}

// Len returns the number of registered replays.
func (m *Manager[V]) Len() int {
	return m.running.Len()
}

// Attempt returns the attempt token of the replay registered for vertex.
func (m *Manager[V]) Attempt(vertex V) (string, bool) {
	r, ok := m.running.Get(vertex)
	if !ok {
		return "", false
	}
	return r.attempt, true
}

// Wait blocks until the replay registered for vertex stops, or ctx ends.
// Returns nil at once if none is registered and ErrNotWaitable if the
// task does not expose a Done channel.
func (m *Manager[V]) Wait(ctx context.Context, vertex V) error {
	if ctx == nil {
		return ErrNilContext
	}
	r, ok := m.running.Get(vertex)
	if !ok {
		return nil
	}
	w, ok := r.task.(interface{ Done() <-chan struct{} })
	if !ok {
		return ErrNotWaitable
	}
	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown rejects new requests, then cancels every registered replay and
// waits for all of them, and any task they were still waiting on, to stop
// or for ctx to end. Cancelled replays do not report completion. A history
// store opened by FromSettings is closed.
func (m *Manager[V]) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var g errgroup.Group
	m.running.Range(func(vertex V, r *replay) bool {
		g.Go(func() error {
			err := r.task.CancelAndWait(ctx)
			if err == nil {
				err = awaitDrained(ctx, r)
			}
			if err != nil {
				observability.LogCancelError(m.logger, vertex.String(), r.attempt, err)
				return fmt.Errorf("vertex %s: %w", vertex.String(), err)
			}
			m.running.DeleteIf(vertex, func(cur *replay) bool { return cur == r })
			return nil
		})
		return true
	})
	m.draining.Range(func(vertex V, r *replay) bool {
		g.Go(func() error {
			if err := awaitDrained(ctx, r); err != nil {
				return fmt.Errorf("vertex %s: %w", vertex.String(), err)
			}
			return nil
		})
		return true
	})
	err := g.Wait()

	if m.ownsHistory {
		if cerr := m.history.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close replay history: %w", cerr))
		}
	}
	return err
}

// record appends to the history journal. Failures are logged and dropped.
func (m *Manager[V]) record(ctx context.Context, entry history.Entry) {
	if m.history == nil {
		return
	}
	if err := m.history.Append(context.WithoutCancel(ctx), entry); err != nil {
		observability.LogHistoryError(m.logger, entry.Vertex, string(entry.Status), err)
	}
}
