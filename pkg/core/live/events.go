package live

import (
	"github.com/overhear-ai/overhear/pkg/core/analysis"
	"github.com/overhear-ai/overhear/pkg/core/convo"
)

// Event is one item on the session egress stream. Consumers switch on the
// concrete type; EventType gives a stable wire label.
type Event interface {
	EventType() string
}

// Status text shown to the consumer. Raw backend errors never surface
// through the status stream.
const (
	StatusInitializing = "Initializing…"
	StatusReady        = "Connected. Ready to listen."
	StatusFailed       = "Initialization failed."
)

// StatusEvent reports a session lifecycle transition.
type StatusEvent struct {
	Status string `json:"status"`
}

func (e *StatusEvent) EventType() string { return "status" }

// TranscriptEvent carries recognized speech. A partial carries the running
// in-progress utterance for the speaker; a final is a committed turn.
type TranscriptEvent struct {
	Speaker   convo.Channel `json:"speaker"`
	Text      string        `json:"text"`
	IsPartial bool          `json:"is_partial"`
	IsFinal   bool          `json:"is_final"`
}

func (e *TranscriptEvent) EventType() string { return "transcript" }

// AnalysisEvent carries a fresh structured analysis of the conversation.
type AnalysisEvent struct {
	Result analysis.Result `json:"result"`
}

func (e *AnalysisEvent) EventType() string { return "analysis" }
