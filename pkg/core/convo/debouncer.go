package convo

import (
	"strings"
	"sync"
	"time"
)

// DebounceState is the per-channel state of the debouncer.
type DebounceState int

const (
	// StateIdle means no text is buffered for the channel.
	StateIdle DebounceState = iota
	// StateAccumulating means partial text has arrived but nothing is
	// finalized yet.
	StateAccumulating
	// StatePendingFlush means finalized fragments are buffered and a flush
	// timer is running.
	StatePendingFlush
)

// String returns a human-readable state name.
func (s DebounceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAccumulating:
		return "ACCUMULATING"
	case StatePendingFlush:
		return "PENDING_FLUSH"
	default:
		return "UNKNOWN"
	}
}

// DebouncerConfig configures turn-completion debouncing.
type DebouncerConfig struct {
	// Window is how long after a final fragment the debouncer waits for
	// further same-speaker fragments before emitting a turn. Low-latency
	// recognizers fragment one spoken sentence into many final events;
	// the window merges them. Default: 2s.
	Window time.Duration
}

// DefaultDebouncerConfig returns a DebouncerConfig with defaults.
func DefaultDebouncerConfig() DebouncerConfig {
	return DebouncerConfig{Window: 2 * time.Second}
}

type channelState struct {
	state     DebounceState
	utterance string   // running concatenation of partial deltas since the last final
	pending   []string // finalized fragments awaiting flush
	timer     *time.Timer
	gen       uint64 // invalidates stale timer fires after cancel/restart
}

// Debouncer merges noisy partial/final recognition fragments into coherent,
// speaker-attributed turns. Finalized fragments for a channel arriving
// within the debounce window are joined into one turn; a final fragment on
// the opposite channel flushes any pending turn first, so a turn never
// spans a speaker change.
type Debouncer struct {
	cfg DebouncerConfig

	mu       sync.Mutex
	channels map[Channel]*channelState
	closed   bool

	onTurn    func(Turn)
	onPartial func(Channel, string)
}

// NewDebouncer creates a debouncer. onTurn is invoked for every flushed
// turn; onPartial (optional) is invoked with the running in-progress
// utterance text for display purposes.
func NewDebouncer(cfg DebouncerConfig, onTurn func(Turn), onPartial func(Channel, string)) *Debouncer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultDebouncerConfig().Window
	}
	return &Debouncer{
		cfg: cfg,
		channels: map[Channel]*channelState{
			Me:   {},
			Them: {},
		},
		onTurn:    onTurn,
		onPartial: onPartial,
	}
}

// State returns the current debounce state for a channel.
func (d *Debouncer) State(ch Channel) DebounceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[ch].state
}

// CurrentUtterance returns the running in-progress utterance for a channel.
func (d *Debouncer) CurrentUtterance(ch Channel) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[ch].utterance
}

// HandlePartial records an in-progress recognition delta. Deltas accumulate
// into the channel's utterance until the next final resets it. A non-empty
// partial cancels a running flush timer: the speaker is still talking, so
// the pending fragments must wait for the next final before a turn can
// complete. Whitespace-only partials are ignored and leave the timer alone.
func (d *Debouncer) HandlePartial(ch Channel, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	cs := d.channels[ch]
	cs.utterance += text
	if cs.state == StateIdle {
		cs.state = StateAccumulating
	}
	if cs.state == StatePendingFlush {
		d.cancelTimerLocked(cs)
	}

	if d.onPartial != nil {
		d.onPartial(ch, cs.utterance)
	}
}

// HandleFinal records a finalized recognition fragment. The fragment is
// appended to the channel's completion buffer, the utterance accumulator is
// reset, and the flush timer restarts. If the other channel has a pending
// flush it is flushed first.
func (d *Debouncer) HandleFinal(ch Channel, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	// Speaker-switch rule: the other speaker's pending turn must complete
	// before this speaker's fragment starts buffering.
	other := d.channels[ch.Other()]
	if other.state == StatePendingFlush {
		d.flushLocked(ch.Other())
	}

	cs := d.channels[ch]
	cs.utterance = ""
	if t := strings.TrimSpace(text); t != "" {
		cs.pending = append(cs.pending, t)
	}
	if len(cs.pending) == 0 {
		cs.state = StateIdle
		return
	}

	cs.state = StatePendingFlush
	d.restartTimerLocked(ch, cs)
}

// Flush immediately emits any pending turn for the channel.
func (d *Debouncer) Flush(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked(ch)
}

// Close force-flushes all non-empty buffers and cancels all timers. The
// debouncer ignores events after Close.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.flushLocked(Me)
	d.flushLocked(Them)
	d.closed = true
}

// restartTimerLocked cancels any running flush timer for the channel and
// starts a fresh one. Callers must hold d.mu.
func (d *Debouncer) restartTimerLocked(ch Channel, cs *channelState) {
	d.cancelTimerLocked(cs)
	gen := cs.gen
	cs.timer = time.AfterFunc(d.cfg.Window, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed || d.channels[ch].gen != gen {
			return
		}
		d.flushLocked(ch)
	})
}

// cancelTimerLocked stops the channel's flush timer and bumps the
// generation so an already-fired callback becomes a no-op.
func (d *Debouncer) cancelTimerLocked(cs *channelState) {
	if cs.timer != nil {
		cs.timer.Stop()
		cs.timer = nil
	}
	cs.gen++
}

// flushLocked emits a turn from the channel's completion buffer and resets
// the channel to idle. Flushing an empty buffer is a no-op; an empty turn
// is never emitted.
func (d *Debouncer) flushLocked(ch Channel) {
	cs := d.channels[ch]
	d.cancelTimerLocked(cs)

	text := strings.TrimSpace(strings.Join(cs.pending, " "))
	cs.pending = nil
	cs.utterance = ""
	cs.state = StateIdle

	if text == "" {
		return
	}
	if d.onTurn != nil {
		d.onTurn(Turn{Speaker: ch, Text: text, Timestamp: time.Now()})
	}
}
