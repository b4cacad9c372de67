package chanreplay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/vertex"
)

const testDir = "/checkpoints"

// fakeTask is a Task driven by the test. A blocking task does not stop
// on CancelAndWait until unblock is called.
type fakeTask struct {
	cfg TaskConfig[vertex.Name]

	mu          sync.Mutex
	started     bool
	stopped     bool
	startCalls  int
	cancelCalls int
	release     chan struct{}
	releaseOnce sync.Once
}

func (t *fakeTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	t.startCalls++
}

func (t *fakeTask) CancelAndWait(ctx context.Context) error {
	t.mu.Lock()
	t.cancelCalls++
	if !t.started || t.stopped {
		t.stopped = true
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	select {
	case <-t.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return nil
}

// unblock lets a pending or future CancelAndWait return.
func (t *fakeTask) unblock() {
	t.releaseOnce.Do(func() { close(t.release) })
}

// finish reports natural completion the way a real task would.
func (t *fakeTask) finish(err error) {
	t.cfg.Notifier.ReplayFinished(t.cfg.Vertex, t.cfg.Attempt, err)
}

func (t *fakeTask) counts() (starts, cancels int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startCalls, t.cancelCalls
}

func (t *fakeTask) isStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// fakeFactory builds fakeTasks and remembers them in creation order.
// When entered and gate are set, build signals entered and then holds
// the request until gate is closed.
type fakeFactory struct {
	blocking bool
	entered  chan struct{}
	gate     chan struct{}

	mu    sync.Mutex
	tasks []*fakeTask
}

func (f *fakeFactory) build(cfg TaskConfig[vertex.Name]) Task {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	t := &fakeTask{cfg: cfg, release: make(chan struct{})}
	if !f.blocking {
		t.unblock()
	}
	f.mu.Lock()
	f.tasks = append(f.tasks, t)
	f.mu.Unlock()
	return t
}

func (f *fakeFactory) task(i int) *fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[i]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// newTestLayout returns an empty in-memory checkpoint layout.
func newTestLayout(t *testing.T) (afero.Fs, *checkpoint.Layout) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testDir, 0o755))
	return fs, checkpoint.NewLayout(fs, testDir)
}

// touch creates an empty artifact.
func touch(t *testing.T, fs afero.Fs, layout *checkpoint.Layout, v vertex.Name, a checkpoint.Artifact) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, layout.Path(v.String(), a), nil, 0o644))
}

// writeSegment publishes envelopes with the given sequences as segment n.
func writeSegment(t *testing.T, layout *checkpoint.Layout, v vertex.Name, n int, seqs ...int64) {
	t.Helper()
	require.NoError(t, checkpoint.WriteArtifact(layout.FS(), layout.SegmentPath(v.String(), n), envelopes(v, seqs...)))
}

// writeFinal writes envelopes with the given sequences as the final artifact.
func writeFinal(t *testing.T, layout *checkpoint.Layout, v vertex.Name, seqs ...int64) {
	t.Helper()
	require.NoError(t, checkpoint.WriteArtifact(layout.FS(), layout.Path(v.String(), checkpoint.ArtifactFinal), envelopes(v, seqs...)))
}

func envelopes(v vertex.Name, seqs ...int64) []transfer.Envelope {
	envs := make([]transfer.Envelope, 0, len(seqs))
	for _, seq := range seqs {
		envs = append(envs, transfer.NewEnvelope(v.String(), "out", seq, []byte("x")))
	}
	return envs
}

// overlapDispatcher sleeps through every dispatch without watching ctx
// and tracks the most dispatches seen running at once.
type overlapDispatcher struct {
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (d *overlapDispatcher) Dispatch(_ context.Context, _ transfer.Envelope) error {
	n := d.inflight.Add(1)
	defer d.inflight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	d.calls.Add(1)
	time.Sleep(d.delay)
	return nil
}

// recorder is a Dispatcher that keeps every envelope it receives.
type recorder struct {
	mu   sync.Mutex
	seqs []int64
}

func (r *recorder) Dispatch(_ context.Context, env transfer.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs = append(r.seqs, env.Sequence)
	return nil
}

func (r *recorder) sequences() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.seqs...)
}

// completion is one ReplayFinished call seen by notifications.
type completion struct {
	vertex  vertex.Name
	attempt string
	err     error
}

// notifications is a Notifier that forwards completions to a channel.
type notifications chan completion

func (n notifications) ReplayFinished(v vertex.Name, attempt string, err error) {
	n <- completion{vertex: v, attempt: attempt, err: err}
}
