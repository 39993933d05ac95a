// Package convo holds the conversation model: speaker channels, finalized
// turns, the append-only ledger, and the debouncer that merges fragmented
// recognizer output into coherent speaker-attributed turns.
package convo

import (
	"sync"
	"time"
)

// Channel identifies a conversation participant. Each channel maps 1:1 to
// a recognition session.
type Channel int

const (
	// Me is the local user's microphone channel.
	Me Channel = iota
	// Them is the remote/system-audio channel.
	Them
)

// String returns a human-readable channel name.
func (c Channel) String() string {
	switch c {
	case Me:
		return "Me"
	case Them:
		return "Them"
	default:
		return "Unknown"
	}
}

// Other returns the opposite channel.
func (c Channel) Other() Channel {
	if c == Me {
		return Them
	}
	return Me
}

// Turn is one finalized, speaker-attributed span of conversation text.
// Immutable once appended to the ledger.
type Turn struct {
	Speaker   Channel   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger is the append-only ordered list of conversation turns. It has a
// single writer (the debouncer flush path) and any number of concurrent
// readers; reads observe consistent snapshots.
type Ledger struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a turn to the ledger and returns the new length.
func (l *Ledger) Append(turn Turn) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
	return len(l.turns)
}

// Len returns the number of turns.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// RecentTurns returns a copy of the most recent n turns in order. A
// non-positive n yields an empty slice.
func (l *Ledger) RecentTurns(n int) []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n > len(l.turns) {
		n = len(l.turns)
	}
	out := make([]Turn, n)
	copy(out, l.turns[len(l.turns)-n:])
	return out
}

// All returns a copy of every turn in order.
func (l *Ledger) All() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}
