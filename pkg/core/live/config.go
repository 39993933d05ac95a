package live

import (
	"time"

	"github.com/overhear-ai/overhear/pkg/core/analysis"
	"github.com/overhear-ai/overhear/pkg/core/recognition"
)

// SessionConfig controls one live transcription session.
type SessionConfig struct {
	// OwnerID identifies the session owner for persistence.
	OwnerID string

	// Model is the transcription model name.
	// Default: "gpt-4o-mini-transcribe".
	Model string

	// SampleRate is the PCM sample rate in Hz for both channels.
	// Default: 24000.
	SampleRate int

	// DebounceWindow is how long a channel stays quiet before its
	// accumulated finals commit as one turn. Default: 2s.
	DebounceWindow time.Duration

	// BatchSize is the ledger-length multiple that triggers an analysis.
	// Default: 5.
	BatchSize int

	// WindowTurns bounds how many recent turns feed each analysis.
	// Default: 30.
	WindowTurns int

	// Retry bounds recognition backend initialization attempts.
	Retry recognition.RetryPolicy

	// VAD configures server-side turn detection for the realtime backend.
	VAD recognition.VADSettings

	// Backend selects the recognition engine.
	Backend recognition.BackendKind

	// RefMaxAge is how long a system-audio frame remains a valid echo
	// reference for the mic path. Default: 500ms.
	RefMaxAge time.Duration

	// Provider selects the primary analysis backend.
	Provider analysis.ProviderKind

	// Fallback selects the analysis backend tried when the primary is
	// unavailable or fails. Set equal to Provider to disable fallback.
	Fallback analysis.ProviderKind

	// AnalysisModel overrides the completion model for the selected
	// provider. Empty uses the provider default.
	AnalysisModel string

	// Credentials and endpoints for the selected backends.
	OpenAIAPIKey string
	GeminiAPIKey string
	WhisperURL   string
	OllamaURL    string
	OllamaModel  string
}

// DefaultSessionConfig returns a SessionConfig with production defaults:
// the realtime recognition backend, OpenAI analysis with Ollama fallback,
// a 2 second debounce window and analysis every 5 turns.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:          "gpt-4o-mini-transcribe",
		SampleRate:     24000,
		DebounceWindow: 2 * time.Second,
		BatchSize:      5,
		WindowTurns:    30,
		Retry:          recognition.DefaultRetryPolicy(),
		VAD:            recognition.DefaultVADSettings(),
		Backend:        recognition.BackendRealtime,
		RefMaxAge:      500 * time.Millisecond,
		Provider:       analysis.ProviderOpenAI,
		Fallback:       analysis.ProviderOllama,
	}
}

// withDefaults fills zero-valued tunables so a partially specified config
// behaves sensibly.
func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = def.DebounceWindow
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.WindowTurns <= 0 {
		c.WindowTurns = def.WindowTurns
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry = def.Retry
	}
	if c.RefMaxAge <= 0 {
		c.RefMaxAge = def.RefMaxAge
	}
	return c
}
