package recognition

import (
	"fmt"

	"github.com/overhear-ai/overhear/pkg/core/convo"
)

// InitializationError means a backend could not be started after exhausting
// its bounded retries. It is fatal to the owning session.
type InitializationError struct {
	Channel  convo.Channel
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	return fmt.Sprintf("recognition init failed for %s after %d attempts: %v", e.Channel, e.Attempts, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *InitializationError) Unwrap() error { return e.Err }

// StreamError reports a mid-session backend failure. The session continues
// in a degraded state; audio is accepted and dropped until the caller
// recreates the session.
type StreamError struct {
	Channel convo.Channel
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("recognition stream error on %s: %v", e.Channel, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *StreamError) Unwrap() error { return e.Err }
