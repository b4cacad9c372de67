package chanreplay

import (
	"errors"
	"fmt"
)

// Sentinel errors for replay coordination.
var (
	// ErrNilContext indicates a blocking call was made with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrManagerClosed indicates the manager has been shut down.
	ErrManagerClosed = errors.New("replay manager closed")

	// ErrNotWaitable indicates the registered task cannot report completion.
	ErrNotWaitable = errors.New("replay task does not expose completion")
)

// CancelError reports that a superseded replay did not stop before the
// caller's deadline. The newer attempt was withdrawn without starting.
type CancelError struct {
	// Vertex is the vertex being replayed.
	Vertex string
	// Previous is the attempt that was being cancelled.
	Previous string
	// Attempt is the withdrawn attempt.
	Attempt string
	// Err is the underlying cause, usually a context error.
	Err error
}

// Error implements the error interface.
func (e *CancelError) Error() string {
	return fmt.Sprintf("vertex %s: replay %s did not stop, withdrew %s: %v",
		e.Vertex, e.Previous, e.Attempt, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CancelError) Unwrap() error {
	return e.Err
}

// ReplayError wraps a fault hit while a task read or dispatched an artifact.
type ReplayError struct {
	// Vertex is the vertex being replayed.
	Vertex string
	// Path is the artifact being read. Empty when the vertex name itself
	// was rejected.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("replay vertex %s: %v", e.Vertex, e.Err)
	}
	return fmt.Sprintf("replay vertex %s from %s: %v", e.Vertex, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ReplayError) Unwrap() error {
	return e.Err
}
