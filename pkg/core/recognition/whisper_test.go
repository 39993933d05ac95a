package recognition

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestWhisperBackend_BatchesAndEmitsFinalsOnly(t *testing.T) {
	var gotWAV []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/inference":
			f, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			gotWAV, _ = io.ReadAll(f)
			json.NewEncoder(w).Encode(map[string]string{"text": " batched transcript "})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewWhisperBackend(srv.URL, WithWhisperChunkDuration(time.Second))
	cfg := Config{Language: "en", SampleRate: 16000}
	if err := b.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// One second of 16kHz PCM16 is 32000 bytes; two sends cross the chunk
	// threshold exactly once.
	frame := make([]byte, 16000)
	if err := b.SendAudio(frame); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	if err := b.SendAudio(frame); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case ev := <-b.Events():
		if ev.Kind != Final {
			t.Fatalf("kind = %s, want FINAL (local engine emits no partials)", ev.Kind)
		}
		if ev.Text != "batched transcript" {
			t.Fatalf("text = %q", ev.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no transcript event")
	}

	if len(gotWAV) != 44+32000 {
		t.Fatalf("wav size = %d, want %d", len(gotWAV), 44+32000)
	}
	if string(gotWAV[:4]) != "RIFF" || string(gotWAV[8:12]) != "WAVE" {
		t.Fatalf("not a wav header: %q", gotWAV[:12])
	}
	if rate := binary.LittleEndian.Uint32(gotWAV[24:28]); rate != 16000 {
		t.Fatalf("sample rate in header = %d", rate)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWhisperBackend_CloseRacesSendAudioSafely(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	b := NewWhisperBackend(srv.URL, WithWhisperChunkDuration(time.Second))
	if err := b.Start(context.Background(), Config{SampleRate: 16000}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Hammer SendAudio while Close runs; the enqueue must never hit the
	// closed jobs channel.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame := make([]byte, 16000)
			for j := 0; j < 200; j++ {
				if err := b.SendAudio(frame); err != nil {
					return
				}
			}
		}()
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()

	if err := b.SendAudio(make([]byte, 2)); err == nil {
		t.Fatal("SendAudio after Close succeeded")
	}
}

func TestWhisperBackend_StartFailsWhenServerDown(t *testing.T) {
	b := NewWhisperBackend("http://127.0.0.1:1")
	if err := b.Start(context.Background(), Config{SampleRate: 16000}); err == nil {
		t.Fatalf("expected health check failure")
	}
}

func TestWhisperBackend_ServerErrorEmitsErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewWhisperBackend(srv.URL, WithWhisperChunkDuration(time.Second))
	if err := b.Start(context.Background(), Config{SampleRate: 16000}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.SendAudio(make([]byte, 32000)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case ev := <-b.Events():
		if ev.Kind != Error || ev.Err == nil {
			t.Fatalf("event = %+v, want error", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no error event")
	}
	_ = b.Close()
}
