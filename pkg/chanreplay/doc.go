/*
Package chanreplay coordinates replaying persisted channel checkpoints back
into a running dataflow job.

# Overview

Each vertex of a job may have a checkpoint on disk, written by another part
of the system. A checkpoint is either complete (a single final artifact) or
partial (numbered segments published while the writer is still running,
plus an in-progress part marker). A Manager answers availability queries
about those artifacts, starts replay tasks that feed the checkpointed
envelopes into a transfer.Dispatcher, and deletes checkpoints on request.

At most one replay is registered per vertex. A new request for a vertex
cancels the registered replay, waits for it to stop, then starts its own:

	layout := checkpoint.NewLayout(nil, "/var/lib/job/checkpoints")
	bus := transfer.NewBus(transfer.BusConfig{})
	defer bus.Close()

	m := chanreplay.NewManager[vertex.Name](layout, bus)
	if err := m.ReplayCheckpoint(ctx, "map-3"); err != nil {
	    log.Fatal(err)
	}

Replay tasks report natural completion through ReplayFinished. Every
registration carries an attempt token, and a completion only removes the
registration it belongs to, so a superseded task finishing late can never
evict its successor.

# Bounded Cancellation

ReplayCheckpoint waits for a superseded replay until ctx ends or the
WithCancelTimeout duration passes. If the wait ends first the new attempt
is withdrawn without starting and a *CancelError is returned:

	m := chanreplay.NewManager[vertex.Name](layout, bus,
	    chanreplay.WithCancelTimeout(5*time.Second))

	var cerr *chanreplay.CancelError
	if errors.As(m.ReplayCheckpoint(ctx, v), &cerr) {
	    // cerr.Previous is still stopping in the background.
	}

# Custom Tasks

FileTask is the default task. Supply another with WithTaskFactory; it must
follow the Task contract and call the Notifier exactly once on natural
completion and never after cancellation.

# Configuration

FromSettings builds a manager from config.Settings, resolved from a
YAML, JSON or TOML file and CHANREPLAY_* environment variables:

	settings, err := config.Load("chanreplay.yaml")
	m, err := chanreplay.FromSettings[vertex.Name](settings, bus)

# Observability

Logging uses log/slog. Metrics and tracing use OpenTelemetry and are off
unless WithMetrics or WithSpanManager is given. WithHistory journals every
attempt's lifecycle to a history.Store.
*/
package chanreplay
