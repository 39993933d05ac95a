package recognition

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/overhear-ai/overhear/pkg/core/convo"
)

// RetryPolicy bounds backend initialization retries. Initialization is the
// only retry loop in the pipeline; mid-stream errors never retry.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3.
	MaxRetries uint64
	// Delay is the fixed wait between attempts. Default: 1s.
	Delay time.Duration
}

// DefaultRetryPolicy returns the default bounded retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Delay: time.Second}
}

// Session wraps one recognition backend for one conversation channel and
// owns its retry and degradation policy.
type Session struct {
	channel convo.Channel
	backend Backend
	policy  RetryPolicy

	events   chan Event
	degraded atomic.Bool
	started  atomic.Bool
}

// NewSession creates a session for the given channel.
func NewSession(channel convo.Channel, backend Backend, policy RetryPolicy) *Session {
	if policy.MaxRetries == 0 {
		policy.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultRetryPolicy().Delay
	}
	return &Session{
		channel: channel,
		backend: backend,
		policy:  policy,
		events:  make(chan Event, 100),
	}
}

// Channel returns the conversation channel this session serves.
func (s *Session) Channel() convo.Channel { return s.channel }

// Degraded reports whether a mid-stream error has disabled the session.
func (s *Session) Degraded() bool { return s.degraded.Load() }

// Initialize starts the backend, retrying up to the policy's bound with a
// fixed delay between attempts. After exhausting retries it returns an
// *InitializationError and the session is unusable.
func (s *Session) Initialize(ctx context.Context, cfg Config) error {
	backoff := retry.WithMaxRetries(s.policy.MaxRetries, retry.NewConstant(s.policy.Delay))
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := s.backend.Start(ctx, cfg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return &InitializationError{Channel: s.channel, Attempts: attempts, Err: err}
	}

	s.started.Store(true)
	go s.forward()
	return nil
}

// forward tags backend events with the session's channel. A backend error
// marks the session degraded; the event stream stays open so consumers see
// the error, and audio keeps being accepted (and dropped).
func (s *Session) forward() {
	defer close(s.events)
	for ev := range s.backend.Events() {
		out := Event{
			Channel:   s.channel,
			Kind:      ev.Kind,
			Text:      ev.Text,
			Timestamp: time.Now(),
		}
		if ev.Kind == Error {
			s.degraded.Store(true)
			out.Err = &StreamError{Channel: s.channel, Err: ev.Err}
		}
		s.events <- out
	}
}

// SendAudio streams one frame to the backend. Frames sent to a degraded
// session are silently dropped; a send failure degrades the session rather
// than propagating.
func (s *Session) SendAudio(data []byte) error {
	if !s.started.Load() || s.degraded.Load() {
		return nil
	}
	if err := s.backend.SendAudio(data); err != nil {
		s.degraded.Store(true)
		return nil
	}
	return nil
}

// Events returns the channel-tagged event stream. It is closed when the
// backend stops.
func (s *Session) Events() <-chan Event { return s.events }

// Close shuts the backend down.
func (s *Session) Close() error {
	if !s.started.Swap(false) {
		return nil
	}
	return s.backend.Close()
}
