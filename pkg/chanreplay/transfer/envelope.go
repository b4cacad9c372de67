// Package transfer defines the contract between replay tasks and the
// data-transfer fabric that delivers reconstructed envelopes to consumers.
package transfer

import (
	"context"
	"time"
)

// EnvelopeVersion is the current envelope format version.
// Increment when making breaking changes to the persisted envelope layout.
const EnvelopeVersion = 1

// Envelope is one unit of channel data written by a vertex and replayed
// from its checkpoint.
type Envelope struct {
	Version   int       `json:"version"`
	Source    string    `json:"source"`
	Channel   string    `json:"channel"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data,omitempty"`
}

// NewEnvelope creates an envelope stamped with the current format version.
func NewEnvelope(source, channel string, sequence int64, data []byte) Envelope {
	return Envelope{
		Version:   EnvelopeVersion,
		Source:    source,
		Channel:   channel,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Dispatcher accepts reconstructed envelopes for delivery to consumers.
// Implementations must be safe for concurrent use; several replay tasks
// may dispatch at once.
type Dispatcher interface {
	// Dispatch hands env to the fabric. It should return promptly once
	// ctx is cancelled.
	Dispatch(ctx context.Context, env Envelope) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, env Envelope) error

// Dispatch calls f(ctx, env).
func (f DispatcherFunc) Dispatch(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Discard is a Dispatcher that drops every envelope.
var Discard Dispatcher = DispatcherFunc(func(context.Context, Envelope) error { return nil })
