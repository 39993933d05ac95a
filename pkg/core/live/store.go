package live

import (
	"context"
	"time"

	"github.com/overhear-ai/overhear/pkg/core/convo"
)

// Transcript is one committed turn as handed to persistence.
type Transcript struct {
	SessionID string
	Speaker   convo.Channel
	Text      string
	Timestamp time.Time
}

// Store persists sessions and their transcripts. Store failures are
// logged and never block or fail the audio pipeline.
type Store interface {
	// CreateSession records a new session for the owner and returns its
	// storage ID.
	CreateSession(ctx context.Context, ownerID string) (string, error)

	// EndSession marks the session as finished.
	EndSession(ctx context.Context, id string) error

	// AddTranscript appends one committed turn to the session.
	AddTranscript(ctx context.Context, t Transcript) error
}
