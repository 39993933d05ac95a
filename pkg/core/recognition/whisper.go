package recognition

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// WhisperBackend transcribes audio with a local whisper server. Unlike the
// realtime socket it has no streaming protocol: audio is batched into
// fixed-duration chunks, each posted as a WAV file, and every reply is a
// completed transcript. The backend never emits partial events.
type WhisperBackend struct {
	baseURL    string
	httpClient *http.Client
	chunkDur   time.Duration

	cfg    Config
	events chan BackendEvent

	// mu guards buf, closed and every send on jobs; Close closes jobs under
	// the same lock so an enqueue can never hit a closed channel.
	mu     sync.Mutex
	buf    []byte
	closed bool

	jobs chan []byte
	wg   sync.WaitGroup
}

// WhisperOption customizes a WhisperBackend.
type WhisperOption func(*WhisperBackend)

// WithWhisperHTTPClient overrides the HTTP client.
func WithWhisperHTTPClient(c *http.Client) WhisperOption {
	return func(b *WhisperBackend) { b.httpClient = c }
}

// WithWhisperChunkDuration sets how much audio is buffered per inference
// call. Default: 3s.
func WithWhisperChunkDuration(d time.Duration) WhisperOption {
	return func(b *WhisperBackend) { b.chunkDur = d }
}

// NewWhisperBackend creates a local-engine backend targeting a
// whisper-server inference endpoint.
func NewWhisperBackend(baseURL string, opts ...WhisperOption) *WhisperBackend {
	b := &WhisperBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		chunkDur:   3 * time.Second,
		events:     make(chan BackendEvent, 100),
		jobs:       make(chan []byte, 8),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start verifies the server is reachable and starts the inference worker.
func (b *WhisperBackend) Start(ctx context.Context, cfg Config) error {
	b.cfg = cfg
	if cfg.SampleRate <= 0 {
		b.cfg.SampleRate = 16000
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("whisper health request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("whisper server health: status %d", resp.StatusCode)
	}

	// Single worker keeps transcripts in arrival order.
	b.wg.Add(1)
	go b.worker()
	return nil
}

// SendAudio buffers PCM16 audio and enqueues an inference call once a full
// chunk has accumulated.
func (b *WhisperBackend) SendAudio(data []byte) error {
	chunkBytes := b.cfg.SampleRate * 2 * int(b.chunkDur/time.Second)
	if chunkBytes <= 0 {
		chunkBytes = b.cfg.SampleRate * 2 * 3
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("whisper backend closed")
	}
	if len(data) == 0 {
		return nil
	}

	b.buf = append(b.buf, data...)
	if len(b.buf) < chunkBytes {
		return nil
	}
	chunk := b.buf
	b.buf = nil

	select {
	case b.jobs <- chunk:
	default:
		// Server is behind; skip this chunk rather than stall ingestion.
	}
	return nil
}

func (b *WhisperBackend) worker() {
	defer b.wg.Done()
	for chunk := range b.jobs {
		text, err := b.transcribe(chunk)
		if err != nil {
			b.emit(BackendEvent{Kind: Error, Err: err})
			continue
		}
		if strings.TrimSpace(text) != "" {
			b.emit(BackendEvent{Kind: Final, Text: strings.TrimSpace(text)})
		}
	}
}

func (b *WhisperBackend) transcribe(pcm []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(buildWAV(pcm, b.cfg.SampleRate, 1, 16)); err != nil {
		return "", fmt.Errorf("write wav: %w", err)
	}
	if b.cfg.Language != "" {
		if err := mw.WriteField("language", b.cfg.Language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, b.baseURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper error %d: %s", resp.StatusCode, string(msg))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse whisper response: %w", err)
	}
	return out.Text, nil
}

func (b *WhisperBackend) emit(ev BackendEvent) {
	select {
	case b.events <- ev:
	default:
	}
}

// Events returns the backend's event stream.
func (b *WhisperBackend) Events() <-chan BackendEvent {
	return b.events
}

// Close flushes any buffered audio through one last inference call, then
// stops the worker.
func (b *WhisperBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	tail := b.buf
	b.buf = nil

	// Half a second of audio is the minimum worth transcribing.
	if len(tail) >= b.cfg.SampleRate {
		select {
		case b.jobs <- tail:
		default:
		}
	}
	close(b.jobs)
	b.mu.Unlock()

	b.wg.Wait()
	close(b.events)
	return nil
}

// buildWAV prepends a RIFF/WAVE header for 16-bit PCM to the sample data.
func buildWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
