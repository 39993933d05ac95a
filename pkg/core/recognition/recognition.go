// Package recognition manages streaming speech-recognition sessions, one
// per conversation channel. Backends are polymorphic over the capability
// {stream audio, emit partial/final text, report errors, close cleanly}:
// a cloud realtime socket backend and a local whisper-server backend are
// provided, selected by configuration at construction time.
package recognition

import (
	"context"
	"time"

	"github.com/overhear-ai/overhear/pkg/core/convo"
)

// Kind classifies a recognition event.
type Kind int

const (
	// Partial is in-progress, not-yet-finalized text for an utterance.
	Partial Kind = iota
	// Final is the recognizer's declaration that an utterance is complete.
	Final
	// Error reports a mid-stream backend failure.
	Error
)

// String returns a human-readable event kind.
func (k Kind) String() string {
	switch k {
	case Partial:
		return "PARTIAL"
	case Final:
		return "FINAL"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is a channel-tagged transcription event produced by a session.
type Event struct {
	Channel   convo.Channel
	Kind      Kind
	Text      string
	Err       error
	Timestamp time.Time
}

// BackendEvent is a raw event emitted by a backend, before channel tagging.
type BackendEvent struct {
	Kind Kind
	Text string
	Err  error
}

// VADSettings configure server-side voice activity detection for backends
// that support it.
type VADSettings struct {
	// Threshold is the activation level in [0,1]. Default: 0.5.
	Threshold float64
	// PrefixPaddingMs is audio retained before detected speech. Default: 300.
	PrefixPaddingMs int
	// SilenceDurationMs is the silence needed to close an utterance.
	// Default: 500.
	SilenceDurationMs int
}

// DefaultVADSettings returns VADSettings with defaults.
func DefaultVADSettings() VADSettings {
	return VADSettings{Threshold: 0.5, PrefixPaddingMs: 300, SilenceDurationMs: 500}
}

// Config describes one channel's recognition stream. The audio format is
// negotiated once at session start: PCM16 mono at SampleRate.
type Config struct {
	Model      string
	Language   string
	SampleRate int
	VAD        VADSettings
}

// Backend is one streaming speech-recognition engine. Implementations must
// tolerate SendAudio being called concurrently with event delivery. The
// events channel is closed when the backend stops.
type Backend interface {
	// Start opens the stream. It blocks until the backend is ready to
	// accept audio or fails.
	Start(ctx context.Context, cfg Config) error

	// SendAudio streams one PCM16 frame.
	SendAudio(data []byte) error

	// Events returns the backend's event stream.
	Events() <-chan BackendEvent

	// Close shuts the stream down cleanly.
	Close() error
}

// BackendKind selects a backend implementation.
type BackendKind int

const (
	// BackendRealtime is the cloud realtime transcription socket.
	BackendRealtime BackendKind = iota
	// BackendWhisper is the local whisper-server engine. It batches audio
	// and emits completed-only events; consumers must tolerate the absence
	// of partials.
	BackendWhisper
)

// String returns a human-readable backend name.
func (k BackendKind) String() string {
	switch k {
	case BackendRealtime:
		return "realtime"
	case BackendWhisper:
		return "whisper"
	default:
		return "unknown"
	}
}
