package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const realtimeHandshakeTimeout = 10 * time.Second

// RealtimeBackend streams audio to a cloud realtime transcription socket.
// On connect it sends a session-configuration message (audio format, model,
// language, VAD parameters), then base64 audio-append messages; the server
// replies with delta and completed transcription events.
type RealtimeBackend struct {
	url    string
	apiKey string

	conn    *websocket.Conn
	events  chan BackendEvent
	done    chan struct{}
	closed  atomic.Bool
	writeMu sync.Mutex
}

// RealtimeOption customizes a RealtimeBackend.
type RealtimeOption func(*RealtimeBackend)

// WithRealtimeURL overrides the socket endpoint. Useful for tests and
// self-hosted gateways.
func WithRealtimeURL(url string) RealtimeOption {
	return func(b *RealtimeBackend) { b.url = url }
}

// NewRealtimeBackend creates a realtime socket backend.
func NewRealtimeBackend(apiKey string, opts ...RealtimeOption) *RealtimeBackend {
	b := &RealtimeBackend{
		url:    "wss://api.openai.com/v1/realtime?intent=transcription",
		apiKey: apiKey,
		events: make(chan BackendEvent, 100),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// sessionUpdate is the session-configuration message sent on connect.
type sessionUpdate struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	InputAudioFormat        string              `json:"input_audio_format"`
	InputAudioTranscription transcriptionConfig `json:"input_audio_transcription"`
	TurnDetection           turnDetection       `json:"turn_detection"`
}

type transcriptionConfig struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// serverMessage covers every inbound shape we care about. Transcription
// events optionally carry a delta or a full transcript.
type serverMessage struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Start dials the socket and sends the session configuration.
func (b *RealtimeBackend) Start(ctx context.Context, cfg Config) error {
	headers := http.Header{}
	if b.apiKey != "" {
		headers.Set("Authorization", "Bearer "+b.apiKey)
	}
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: realtimeHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, b.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("realtime connect: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("realtime connect: %w", err)
	}
	b.conn = conn

	vad := cfg.VAD
	if vad.Threshold == 0 {
		vad = DefaultVADSettings()
	}
	update := sessionUpdate{
		Type: "transcription_session.update",
		Session: sessionPayload{
			InputAudioFormat: "pcm16",
			InputAudioTranscription: transcriptionConfig{
				Model:    cfg.Model,
				Language: cfg.Language,
			},
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         vad.Threshold,
				PrefixPaddingMs:   vad.PrefixPaddingMs,
				SilenceDurationMs: vad.SilenceDurationMs,
			},
		},
	}
	if err := b.writeJSON(update); err != nil {
		conn.Close()
		return fmt.Errorf("realtime session config: %w", err)
	}

	go b.readLoop()
	return nil
}

func (b *RealtimeBackend) readLoop() {
	defer func() {
		close(b.events)
		close(b.done)
	}()

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if !b.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.emit(BackendEvent{Kind: Error, Err: err})
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch {
		case strings.HasSuffix(msg.Type, "transcription.delta"):
			if msg.Delta != "" {
				b.emit(BackendEvent{Kind: Partial, Text: msg.Delta})
			}
		case strings.HasSuffix(msg.Type, "transcription.completed"):
			text := msg.Transcript
			if text == "" {
				text = msg.Delta
			}
			b.emit(BackendEvent{Kind: Final, Text: text})
		case msg.Type == "error":
			b.emit(BackendEvent{Kind: Error, Err: fmt.Errorf("realtime server: %s", msg.Error.Message)})
			return
		}
	}
}

func (b *RealtimeBackend) emit(ev BackendEvent) {
	select {
	case b.events <- ev:
	default:
		// Consumer stalled; drop rather than block the read loop.
	}
}

// SendAudio streams one PCM16 frame as a base64 append message.
func (b *RealtimeBackend) SendAudio(data []byte) error {
	if b.closed.Load() {
		return fmt.Errorf("realtime backend closed")
	}
	if len(data) == 0 {
		return nil
	}
	return b.writeJSON(audioAppend{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(data),
	})
}

func (b *RealtimeBackend) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, payload)
}

// Events returns the backend's event stream.
func (b *RealtimeBackend) Events() <-chan BackendEvent {
	return b.events
}

// Close sends a close frame and tears the connection down.
func (b *RealtimeBackend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.conn == nil {
		close(b.events)
		return nil
	}
	b.writeMu.Lock()
	_ = b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
	b.writeMu.Unlock()
	err := b.conn.Close()
	<-b.done
	return err
}
