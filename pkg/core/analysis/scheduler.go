package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/overhear-ai/overhear/pkg/core/convo"
)

// SchedulerConfig configures analysis scheduling.
type SchedulerConfig struct {
	// BatchSize triggers an analysis whenever the ledger length is a
	// positive multiple of it. Default: 5.
	BatchSize int
	// WindowTurns bounds how many recent turns are embedded in the
	// prompt. Default: 30.
	WindowTurns int
	// HistoryLimit is how many past results are retained. Default: 10.
	HistoryLimit int
	// Timeout bounds one completion call. Default: 30s.
	Timeout time.Duration
}

// DefaultSchedulerConfig returns a SchedulerConfig with defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize:    5,
		WindowTurns:  30,
		HistoryLimit: 10,
		Timeout:      30 * time.Second,
	}
}

// Scheduler converts ledger growth into structured analysis. The
// completion call is the only long-blocking operation in the pipeline, so
// it runs as a detached background task; the scheduler is the single
// writer of the running result and hands out immutable snapshots.
type Scheduler struct {
	cfg      SchedulerConfig
	ledger   *convo.Ledger
	primary  Provider
	fallback Provider
	logger   *slog.Logger
	onResult func(Result)

	mu      sync.Mutex
	prev    *Result
	history []Snapshot

	inFlight atomic.Bool
}

// NewScheduler creates a scheduler. fallback may be nil; onResult
// (optional) receives every fresh result. logger must not be nil.
func NewScheduler(cfg SchedulerConfig, ledger *convo.Ledger, primary, fallback Provider, logger *slog.Logger, onResult func(Result)) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.WindowTurns <= 0 {
		cfg.WindowTurns = def.WindowTurns
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Scheduler{
		cfg:      cfg,
		ledger:   ledger,
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		onResult: onResult,
	}
}

// ShouldTrigger reports whether a ledger of the given length warrants an
// analysis: positive multiples of the batch size only.
func (s *Scheduler) ShouldTrigger(ledgerLen int) bool {
	return ledgerLen > 0 && ledgerLen%s.cfg.BatchSize == 0
}

// MaybeAnalyze triggers a background analysis when the ledger length hits
// the batch boundary. It never blocks the caller; at most one analysis
// runs at a time, and a trigger arriving mid-run is skipped (the next
// boundary will catch up).
func (s *Scheduler) MaybeAnalyze(ctx context.Context, ledgerLen int) bool {
	if !s.ShouldTrigger(ledgerLen) {
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.inFlight.Store(false)
		s.RunOnce(ctx)
	}()
	return true
}

// RunOnce performs one analysis synchronously and returns the resulting
// snapshot. On total backend failure the previous result is returned
// unchanged; once an analysis exists, consumers never see it go blank.
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	turns := s.ledger.RecentTurns(s.cfg.WindowTurns)
	ledgerLen := s.ledger.Len()

	s.mu.Lock()
	prev := s.prev
	s.mu.Unlock()

	req := BuildPrompt(turns, prev)

	reply, err := s.complete(ctx, req)
	if err != nil {
		s.logger.Warn("analysis backends failed; keeping previous result", "err", err)
		if prev != nil {
			return prev.Clone()
		}
		return Result{}
	}

	result := ParseResult(reply, prev)

	s.mu.Lock()
	clone := result.Clone()
	s.prev = &clone
	s.history = append(s.history, Snapshot{
		Result:    result.Clone(),
		Timestamp: time.Now(),
		LedgerLen: ledgerLen,
	})
	if len(s.history) > s.cfg.HistoryLimit {
		s.history = s.history[len(s.history)-s.cfg.HistoryLimit:]
	}
	s.mu.Unlock()

	if s.onResult != nil {
		s.onResult(result.Clone())
	}
	return result
}

// complete tries the primary provider, then the fallback. A provider that
// exposes an availability check is probed before use.
func (s *Scheduler) complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var lastErr error
	for _, p := range []Provider{s.primary, s.fallback} {
		if p == nil {
			continue
		}
		if checker, ok := p.(AvailabilityChecker); ok {
			if err := checker.Available(ctx); err != nil {
				s.logger.Debug("analysis provider unavailable", "provider", p.Name(), "err", err)
				lastErr = err
				continue
			}
		}
		reply, err := p.Complete(ctx, req)
		if err != nil {
			s.logger.Debug("analysis provider failed", "provider", p.Name(), "err", err)
			lastErr = err
			continue
		}
		return reply, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no analysis provider configured")
	}
	return "", lastErr
}

// Current returns a snapshot of the latest result, or false when no
// analysis has completed yet.
func (s *Scheduler) Current() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prev == nil {
		return Result{}, false
	}
	return s.prev.Clone(), true
}

// History returns the retained result snapshots, oldest first.
func (s *Scheduler) History() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the running result and history. Used on session close so
// analysis state never leaks across sessions.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prev = nil
	s.history = nil
}
