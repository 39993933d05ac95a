package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/overhear-ai/overhear/pkg/core/aec"
	"github.com/overhear-ai/overhear/pkg/core/analysis"
	"github.com/overhear-ai/overhear/pkg/core/convo"
	"github.com/overhear-ai/overhear/pkg/core/recognition"
)

var (
	ErrSessionActive   = errors.New("live: session already active")
	ErrNoSession       = errors.New("live: no active session")
	ErrUnsupportedMime = errors.New("live: unsupported audio mime type")
)

// storeTimeout bounds each persistence call so a slow database can never
// stall the audio path.
const storeTimeout = 5 * time.Second

// BackendFactory builds a recognition backend for one channel. Each
// channel gets its own backend instance.
type BackendFactory func(ch convo.Channel) recognition.Backend

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore attaches a persistence collaborator.
func WithStore(store Store) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithBackendFactory overrides how recognition backends are built.
func WithBackendFactory(f BackendFactory) ManagerOption {
	return func(m *Manager) { m.newBackend = f }
}

// WithProviders injects analysis providers directly, bypassing the
// config-driven construction. fallback may be nil.
func WithProviders(primary, fallback analysis.Provider) ManagerOption {
	return func(m *Manager) {
		m.primary = primary
		m.fallback = fallback
		m.providersInjected = true
	}
}

// Manager is the control surface for live transcription. One Manager runs
// at most one session at a time; events from every session share the same
// egress channel.
type Manager struct {
	cfg        SessionConfig
	logger     *slog.Logger
	store      Store
	newBackend BackendFactory

	primary           analysis.Provider
	fallback          analysis.Provider
	providersInjected bool

	events chan Event

	mu        sync.Mutex
	session   *Session
	storeID   string
	pair      *recognition.Pair
	debouncer *convo.Debouncer
	ledger    *convo.Ledger
	scheduler *analysis.Scheduler
	canceller *aec.Canceller
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	refMu    sync.Mutex
	refFrame []float64
	refAt    time.Time
}

// NewManager creates a Manager with the given config.
func NewManager(cfg SessionConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
		events: make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newBackend == nil {
		m.newBackend = m.configuredBackend
	}
	return m
}

func (m *Manager) configuredBackend(convo.Channel) recognition.Backend {
	switch m.cfg.Backend {
	case recognition.BackendWhisper:
		return recognition.NewWhisperBackend(m.cfg.WhisperURL)
	default:
		return recognition.NewRealtimeBackend(m.cfg.OpenAIAPIKey)
	}
}

// Events returns the egress stream. Events are dropped, not blocked on,
// when the consumer falls behind.
func (m *Manager) Events() <-chan Event { return m.events }

// InitializeSession starts a new session transcribing in the given
// language (empty for auto-detect). Both channel backends must come up;
// initialization failure leaves no active session.
func (m *Manager) InitializeSession(ctx context.Context, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.State == SessionActive {
		return ErrSessionActive
	}

	m.emit(&StatusEvent{Status: StatusInitializing})

	sess := newSession()
	storeID := sess.ID
	storeCreated := false
	if m.store != nil {
		id, err := m.store.CreateSession(ctx, m.cfg.OwnerID)
		if err != nil {
			m.logger.Warn("store: create session failed", "err", err)
		} else {
			storeID = id
			storeCreated = true
		}
	}

	me := recognition.NewSession(convo.Me, m.newBackend(convo.Me), m.cfg.Retry)
	them := recognition.NewSession(convo.Them, m.newBackend(convo.Them), m.cfg.Retry)
	pair := recognition.NewPair(me, them)

	rcfg := recognition.Config{
		Model:      m.cfg.Model,
		Language:   language,
		SampleRate: m.cfg.SampleRate,
		VAD:        m.cfg.VAD,
	}
	if err := pair.Start(ctx, rcfg); err != nil {
		m.logger.Error("recognition startup failed", "session", sess.ID, "err", err)
		// The stored session never went live; end it so it is not left
		// dangling as active.
		if storeCreated {
			sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			if serr := m.store.EndSession(sctx, storeID); serr != nil {
				m.logger.Warn("store: end session failed", "session", storeID, "err", serr)
			}
			cancel()
		}
		m.emit(&StatusEvent{Status: StatusFailed})
		return fmt.Errorf("initialize session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ledger := convo.NewLedger()

	primary, fallback := m.buildProviders(runCtx)
	scheduler := analysis.NewScheduler(analysis.SchedulerConfig{
		BatchSize:   m.cfg.BatchSize,
		WindowTurns: m.cfg.WindowTurns,
	}, ledger, primary, fallback, m.logger, func(r analysis.Result) {
		m.emit(&AnalysisEvent{Result: r})
	})

	onTurn := func(turn convo.Turn) {
		m.commitTurn(runCtx, ledger, scheduler, storeID, turn)
	}
	onPartial := func(ch convo.Channel, text string) {
		m.emit(&TranscriptEvent{Speaker: ch, Text: text, IsPartial: true})
	}
	debouncer := convo.NewDebouncer(convo.DebouncerConfig{Window: m.cfg.DebounceWindow}, onTurn, onPartial)

	m.session = sess
	m.storeID = storeID
	m.pair = pair
	m.debouncer = debouncer
	m.ledger = ledger
	m.scheduler = scheduler
	m.canceller = aec.New(aec.DefaultConfig())
	m.cancel = cancel

	m.wg.Add(1)
	go m.dispatch(pair, debouncer)

	m.logger.Info("session initialized", "session", sess.ID, "language", language, "backend", m.cfg.Backend.String())
	m.emit(&StatusEvent{Status: StatusReady})
	return nil
}

// dispatch routes merged recognition events into the debouncer. It exits
// when the pair's event stream closes.
func (m *Manager) dispatch(pair *recognition.Pair, debouncer *convo.Debouncer) {
	defer m.wg.Done()
	for ev := range pair.Events() {
		switch ev.Kind {
		case recognition.Partial:
			debouncer.HandlePartial(ev.Channel, ev.Text)
		case recognition.Final:
			debouncer.HandleFinal(ev.Channel, ev.Text)
		case recognition.Error:
			m.logger.Warn("recognition stream degraded", "channel", ev.Channel.String(), "err", ev.Err)
		}
	}
}

// commitTurn is the single writer of the ledger. Persistence runs on its
// own goroutine with its own deadline.
func (m *Manager) commitTurn(ctx context.Context, ledger *convo.Ledger, scheduler *analysis.Scheduler, storeID string, turn convo.Turn) {
	n := ledger.Append(turn)
	m.emit(&TranscriptEvent{Speaker: turn.Speaker, Text: turn.Text, IsFinal: true})

	if m.store != nil {
		go func() {
			pctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			err := m.store.AddTranscript(pctx, Transcript{
				SessionID: storeID,
				Speaker:   turn.Speaker,
				Text:      turn.Text,
				Timestamp: turn.Timestamp,
			})
			if err != nil {
				m.logger.Warn("store: add transcript failed", "session", storeID, "err", err)
			}
		}()
	}

	scheduler.MaybeAnalyze(ctx, n)
}

// SendMicAudio feeds one PCM16 frame from the microphone. The frame is
// echo-cancelled against the most recent system frame before it reaches
// the Me recognition session.
func (m *Manager) SendMicAudio(data []byte, mime string) error {
	if mime != "" && !strings.HasPrefix(mime, "audio/pcm") {
		return fmt.Errorf("%w: %q", ErrUnsupportedMime, mime)
	}

	m.mu.Lock()
	pair, canceller := m.pair, m.canceller
	active := m.session != nil && m.session.State == SessionActive
	m.mu.Unlock()
	if !active {
		return ErrNoSession
	}

	samples := aec.SamplesFromPCM16(data)
	out := canceller.Process(samples, m.currentReference())
	return pair.SendAudio(convo.Me, aec.PCM16FromSamples(out))
}

// SendSystemAudio feeds one PCM16 frame of system loopback audio. The
// frame becomes the echo reference for subsequent mic frames and is
// forwarded to the Them recognition session.
func (m *Manager) SendSystemAudio(data []byte) error {
	m.mu.Lock()
	pair := m.pair
	active := m.session != nil && m.session.State == SessionActive
	m.mu.Unlock()
	if !active {
		return ErrNoSession
	}

	m.refMu.Lock()
	m.refFrame = aec.SamplesFromPCM16(data)
	m.refAt = time.Now()
	m.refMu.Unlock()

	return pair.SendAudio(convo.Them, data)
}

// currentReference returns the retained system frame, or nil when it has
// gone stale. A stale reference makes the echo canceller pass mic audio
// through unchanged.
func (m *Manager) currentReference() []float64 {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	if m.refFrame == nil || time.Since(m.refAt) > m.cfg.RefMaxAge {
		return nil
	}
	return m.refFrame
}

// CloseSession flushes pending turns, shuts down both recognition
// sessions and ends the stored session.
func (m *Manager) CloseSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.session.State != SessionActive {
		return ErrNoSession
	}

	m.debouncer.Close()

	if err := m.pair.Close(); err != nil {
		m.logger.Warn("recognition shutdown", "session", m.session.ID, "err", err)
	}
	m.wg.Wait()

	if m.store != nil {
		sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := m.store.EndSession(sctx, m.storeID); err != nil {
			m.logger.Warn("store: end session failed", "session", m.storeID, "err", err)
		}
		cancel()
	}

	m.cancel()
	m.scheduler.Reset()

	m.session.EndedAt = time.Now()
	m.session.State = SessionClosed

	m.refMu.Lock()
	m.refFrame = nil
	m.refMu.Unlock()

	m.pair = nil
	m.debouncer = nil
	m.canceller = nil
	m.cancel = nil

	m.logger.Info("session closed", "session", m.session.ID, "turns", m.ledger.Len())
	return nil
}

// IsSessionActive reports whether a session is currently running.
func (m *Manager) IsSessionActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.State == SessionActive
}

// CurrentSession returns a copy of the current (or most recent) session
// descriptor, or nil when none has been started.
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	copied := *m.session
	return &copied
}

// ConversationHistory returns all committed turns of the current (or most
// recent) session, oldest first.
func (m *Manager) ConversationHistory() []convo.Turn {
	m.mu.Lock()
	ledger := m.ledger
	m.mu.Unlock()
	if ledger == nil {
		return nil
	}
	return ledger.All()
}

// CurrentAnalysis returns the latest analysis result, or false when no
// analysis has completed in this session.
func (m *Manager) CurrentAnalysis() (analysis.Result, bool) {
	m.mu.Lock()
	scheduler := m.scheduler
	m.mu.Unlock()
	if scheduler == nil {
		return analysis.Result{}, false
	}
	return scheduler.Current()
}

// AnalysisHistory returns the retained analysis snapshots for the current
// session, oldest first.
func (m *Manager) AnalysisHistory() []analysis.Snapshot {
	m.mu.Lock()
	scheduler := m.scheduler
	m.mu.Unlock()
	if scheduler == nil {
		return nil
	}
	return scheduler.History()
}

// buildProviders resolves the analysis provider chain from the config,
// unless providers were injected.
func (m *Manager) buildProviders(ctx context.Context) (analysis.Provider, analysis.Provider) {
	if m.providersInjected {
		return m.primary, m.fallback
	}
	primary := m.buildProvider(ctx, m.cfg.Provider)
	var fallback analysis.Provider
	if m.cfg.Fallback != m.cfg.Provider {
		fallback = m.buildProvider(ctx, m.cfg.Fallback)
	}
	return primary, fallback
}

func (m *Manager) buildProvider(ctx context.Context, kind analysis.ProviderKind) analysis.Provider {
	switch kind {
	case analysis.ProviderGemini:
		p, err := analysis.NewGeminiProvider(ctx, m.cfg.GeminiAPIKey, m.cfg.AnalysisModel)
		if err != nil {
			m.logger.Warn("gemini provider unavailable", "err", err)
			return nil
		}
		return p
	case analysis.ProviderOllama:
		return analysis.NewOllamaProvider(m.cfg.OllamaURL, m.cfg.OllamaModel)
	default:
		return analysis.NewOpenAIProvider(m.cfg.OpenAIAPIKey, m.cfg.AnalysisModel)
	}
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Debug("event dropped", "type", ev.EventType())
	}
}
