// Package broadcast holds the local lifecycle of the availability toggle:
// off → customizing (countdown) → broadcasting → off. The state machine is
// UI-local and never persisted; the server-confirmed status arrives through
// SetBroadcasting and always wins.
package broadcast

import (
	"sync"
	"time"
)

// defaultCountdown is how long the customize window stays open before the
// broadcast starts on its own.
const defaultCountdown = 10 * time.Second

// ToggleState is the local state of the availability toggle.
type ToggleState string

const (
	StateOff          ToggleState = "off"
	StateCustomizing  ToggleState = "customizing"
	StateBroadcasting ToggleState = "broadcasting"
)

// Callbacks are invoked on the transitions the user or the countdown drives.
// External synchronization via SetBroadcasting never invokes them.
type Callbacks struct {
	// Customize fires when the user opens the countdown window.
	Customize func()
	// Start fires exactly once when the countdown elapses.
	Start func()
	// End fires when the user turns the toggle off, from either the
	// countdown window or an active broadcast.
	End func()
}

// Config adjusts the toggle. The zero value uses the production countdown.
type Config struct {
	Countdown time.Duration
}

// Toggle is the broadcast availability state machine. At most one countdown
// timer is pending at any time; entering any state other than customizing
// clears it.
type Toggle struct {
	mu        sync.Mutex
	state     ToggleState
	countdown time.Duration
	cbs       Callbacks
	timer     *time.Timer
}

// NewToggle creates a Toggle in the off state.
func NewToggle(cfg Config, cbs Callbacks) *Toggle {
	if cfg.Countdown <= 0 {
		cfg.Countdown = defaultCountdown
	}
	return &Toggle{
		state:     StateOff,
		countdown: cfg.Countdown,
		cbs:       cbs,
	}
}

// State returns the current local state.
func (t *Toggle) State() ToggleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Tap advances the machine the way a user tapping the toggle does.
func (t *Toggle) Tap() {
	t.mu.Lock()
	var cb func()
	switch t.state {
	case StateOff:
		t.state = StateCustomizing
		t.timer = time.AfterFunc(t.countdown, t.countdownElapsed)
		cb = t.cbs.Customize
	case StateCustomizing:
		t.clearTimer()
		t.state = StateOff
		cb = t.cbs.End
	case StateBroadcasting:
		t.state = StateOff
		cb = t.cbs.End
	}
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// countdownElapsed moves customizing to broadcasting. If the user already
// tapped out of the countdown the elapsed timer is a no-op, so Start fires
// at most once per customize window.
func (t *Toggle) countdownElapsed() {
	t.mu.Lock()
	if t.state != StateCustomizing {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.state = StateBroadcasting
	cb := t.cbs.Start
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// SetBroadcasting force-synchronizes the local state to a server-confirmed
// status. No callbacks fire; the server state is already fact.
func (t *Toggle) SetBroadcasting(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTimer()
	if active {
		t.state = StateBroadcasting
	} else {
		t.state = StateOff
	}
}

// Close cancels any pending countdown without firing callbacks. Call on
// teardown so the timer cannot outlive the owning UI.
func (t *Toggle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTimer()
	t.state = StateOff
}

// clearTimer stops the pending countdown. Caller holds t.mu.
func (t *Toggle) clearTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
