package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// realtimeTestServer implements enough of the transcription socket protocol
// to exercise the client.
func realtimeTestServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestRealtimeBackend_SessionConfigAndEvents(t *testing.T) {
	configured := make(chan sessionUpdate, 1)
	audio := make(chan audioAppend, 4)

	srv := realtimeTestServer(t, func(conn *websocket.Conn) {
		// First inbound message must be the session configuration.
		var update sessionUpdate
		if err := conn.ReadJSON(&update); err != nil {
			t.Errorf("read session config: %v", err)
			return
		}
		configured <- update

		var app audioAppend
		if err := conn.ReadJSON(&app); err != nil {
			t.Errorf("read audio append: %v", err)
			return
		}
		audio <- app

		_ = conn.WriteJSON(map[string]string{
			"type":  "conversation.item.input_audio_transcription.delta",
			"delta": "hel",
		})
		_ = conn.WriteJSON(map[string]string{
			"type":       "conversation.item.input_audio_transcription.completed",
			"transcript": "hello there",
		})

		// Hold the socket open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	b := NewRealtimeBackend("test-key", WithRealtimeURL(wsURL(srv)))
	cfg := Config{
		Model:      "gpt-4o-mini-transcribe",
		Language:   "en",
		SampleRate: 24000,
		VAD:        VADSettings{Threshold: 0.6, PrefixPaddingMs: 200, SilenceDurationMs: 700},
	}
	if err := b.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	update := <-configured
	if update.Type != "transcription_session.update" {
		t.Fatalf("config type = %q", update.Type)
	}
	if update.Session.InputAudioFormat != "pcm16" {
		t.Fatalf("audio format = %q, want pcm16", update.Session.InputAudioFormat)
	}
	if update.Session.InputAudioTranscription.Model != "gpt-4o-mini-transcribe" {
		t.Fatalf("model = %q", update.Session.InputAudioTranscription.Model)
	}
	td := update.Session.TurnDetection
	if td.Threshold != 0.6 || td.PrefixPaddingMs != 200 || td.SilenceDurationMs != 700 {
		t.Fatalf("turn detection = %+v", td)
	}

	if err := b.SendAudio([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	app := <-audio
	if app.Type != "input_audio_buffer.append" {
		t.Fatalf("append type = %q", app.Type)
	}
	decoded, err := base64.StdEncoding.DecodeString(app.Audio)
	if err != nil || len(decoded) != 3 || decoded[0] != 0x01 {
		t.Fatalf("audio payload = %q (decoded %v, err %v)", app.Audio, decoded, err)
	}

	ev := <-b.Events()
	if ev.Kind != Partial || ev.Text != "hel" {
		t.Fatalf("first event = %+v, want partial 'hel'", ev)
	}
	ev = <-b.Events()
	if ev.Kind != Final || ev.Text != "hello there" {
		t.Fatalf("second event = %+v, want final 'hello there'", ev)
	}
}

func TestRealtimeBackend_ServerErrorEmitsErrorEvent(t *testing.T) {
	srv := realtimeTestServer(t, func(conn *websocket.Conn) {
		var update sessionUpdate
		_ = conn.ReadJSON(&update)
		payload, _ := json.Marshal(map[string]any{
			"type":  "error",
			"error": map[string]string{"message": "session expired"},
		})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	})
	defer srv.Close()

	b := NewRealtimeBackend("k", WithRealtimeURL(wsURL(srv)))
	if err := b.Start(context.Background(), Config{Model: "m"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case ev := <-b.Events():
		if ev.Kind != Error || ev.Err == nil {
			t.Fatalf("event = %+v, want error event", ev)
		}
		if !strings.Contains(ev.Err.Error(), "session expired") {
			t.Fatalf("err = %v", ev.Err)
		}
	case <-time.After(time.Second):
		t.Fatalf("no error event")
	}
	_ = b.Close()
}

func TestRealtimeBackend_StartFailsWhenUnreachable(t *testing.T) {
	b := NewRealtimeBackend("k", WithRealtimeURL("ws://127.0.0.1:1/realtime"))
	if err := b.Start(context.Background(), Config{}); err == nil {
		t.Fatalf("expected dial error")
	}
}
