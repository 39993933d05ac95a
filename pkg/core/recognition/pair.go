package recognition

import (
	"context"
	"fmt"
	"sync"

	"github.com/overhear-ai/overhear/pkg/core/convo"
)

// Pair owns exactly two recognition sessions, one per conversation channel.
// It fans audio out to the right session and fans both event streams into a
// single channel-tagged stream.
type Pair struct {
	sessions map[convo.Channel]*Session
	events   chan Event
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewPair creates a pair from the Me and Them sessions.
func NewPair(me, them *Session) *Pair {
	return &Pair{
		sessions: map[convo.Channel]*Session{
			convo.Me:   me,
			convo.Them: them,
		},
		events: make(chan Event, 200),
	}
}

// Start initializes both sessions concurrently. Both must succeed; if
// either fails after its retries the other is closed and the whole start
// fails.
func (p *Pair) Start(ctx context.Context, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pair already started")
	}

	errs := make(map[convo.Channel]error, 2)
	var initWG sync.WaitGroup
	var errMu sync.Mutex
	for ch, sess := range p.sessions {
		initWG.Add(1)
		go func(ch convo.Channel, sess *Session) {
			defer initWG.Done()
			if err := sess.Initialize(ctx, cfg); err != nil {
				errMu.Lock()
				errs[ch] = err
				errMu.Unlock()
			}
		}(ch, sess)
	}
	initWG.Wait()

	if len(errs) > 0 {
		for ch, sess := range p.sessions {
			if errs[ch] == nil {
				_ = sess.Close()
			}
		}
		for _, err := range errs {
			return err
		}
	}

	for _, sess := range p.sessions {
		p.wg.Add(1)
		go func(sess *Session) {
			defer p.wg.Done()
			for ev := range sess.Events() {
				p.events <- ev
			}
		}(sess)
	}
	go func() {
		p.wg.Wait()
		close(p.events)
	}()

	p.started = true
	return nil
}

// SendAudio fans one frame out to the channel's session.
func (p *Pair) SendAudio(ch convo.Channel, data []byte) error {
	sess, ok := p.sessions[ch]
	if !ok {
		return fmt.Errorf("no session for channel %s", ch)
	}
	return sess.SendAudio(data)
}

// Session returns the session serving a channel.
func (p *Pair) Session(ch convo.Channel) *Session {
	return p.sessions[ch]
}

// Events returns the merged, channel-tagged event stream. It is closed
// once both sessions have stopped.
func (p *Pair) Events() <-chan Event {
	return p.events
}

// Close shuts both sessions down concurrently and waits for both to finish.
func (p *Pair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var closeWG sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error
	for _, sess := range p.sessions {
		closeWG.Add(1)
		go func(sess *Session) {
			defer closeWG.Done()
			if err := sess.Close(); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}(sess)
	}
	closeWG.Wait()
	return firstErr
}
