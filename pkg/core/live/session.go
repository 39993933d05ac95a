package live

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	SessionActive SessionState = iota
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session identifies one live transcription session.
type Session struct {
	ID        string       `json:"id"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   time.Time    `json:"endedAt,omitempty"`
	State     SessionState `json:"state"`
}

func newSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		State:     SessionActive,
	}
}
