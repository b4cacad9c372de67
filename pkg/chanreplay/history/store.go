// Package history records the lifecycle of replay attempts per vertex.
package history

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle event an Entry records.
type Status string

// Entry status constants.
const (
	// StatusStarted is written when a replay task is started.
	StatusStarted Status = "started"
	// StatusSuperseded is written when a newer request cancelled the attempt.
	StatusSuperseded Status = "superseded"
	// StatusFinished is written when the attempt exhausted its checkpoint data.
	StatusFinished Status = "finished"
	// StatusFailed is written when the attempt ended on a read or dispatch fault.
	StatusFailed Status = "failed"
	// StatusWithdrawn is written when the attempt was registered but never
	// started because the displaced attempt did not stop in time.
	StatusWithdrawn Status = "withdrawn"
)

// Entry is one recorded lifecycle event of a replay attempt.
type Entry struct {
	Sequence  int64     `json:"sequence" yaml:"sequence"`
	Vertex    string    `json:"vertex" yaml:"vertex"`
	Attempt   string    `json:"attempt" yaml:"attempt"`
	Status    Status    `json:"status" yaml:"status"`
	Complete  bool      `json:"complete" yaml:"complete"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store persists replay history.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append records an entry. Sequence is assigned by the store and a
	// zero Timestamp is replaced with the current time.
	Append(ctx context.Context, entry Entry) error

	// List returns all entries for a vertex ordered by sequence.
	// Returns empty slice (not error) if the vertex has no history.
	List(ctx context.Context, vertex string) ([]Entry, error)

	// Latest returns the most recent entry for a vertex.
	// Returns ErrNotFound if the vertex has no history.
	Latest(ctx context.Context, vertex string) (Entry, error)

	// Delete removes all entries for a vertex.
	// Returns nil if the vertex has no history.
	Delete(ctx context.Context, vertex string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for history operations.
var (
	// ErrNotFound indicates a vertex has no recorded history.
	ErrNotFound = errors.New("replay history not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("replay history store closed")
)
