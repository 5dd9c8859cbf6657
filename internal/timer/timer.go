// Package timer implements the deferred action timer: a single countdown
// shared by every delayed action of the power state machine.
//
// The calibration follows the reference oscillator: 8 MHz with a 1024
// prescaler and a compare match at 252 gives 31 matches per second, so one
// tick is time.Second/31 (about 32.26 ms). Delays resolve to whole ticks:
// seconds*31 truncates.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// TicksPerSecond is the stock tick calibration.
const TicksPerSecond = 31

// ErrCalibration reports a tick calibration that cannot count time.
var ErrCalibration = errors.New("timer: ticks per second must be positive")

// Timer holds at most one armed action. When nothing is armed the tick
// source is stopped and ticks are ignored.
type Timer struct {
	mu             sync.Mutex
	ticksPerSecond int
	ticks          int
	armed          logic.Action
	fired          logic.Action
	notify         func()
	kick           chan struct{}
}

// New creates a timer. notify is called, outside the timer's lock, whenever
// an action is handed to the foreground via TakeFired; it must not block.
func New(ticksPerSecond int, notify func()) (*Timer, error) {
	if ticksPerSecond <= 0 {
		return nil, ErrCalibration
	}
	if notify == nil {
		notify = func() {}
	}
	return &Timer{
		ticksPerSecond: ticksPerSecond,
		notify:         notify,
		kick:           make(chan struct{}, 1),
	}, nil
}

// Period returns the duration of one tick.
func (t *Timer) Period() time.Duration {
	return time.Second / time.Duration(t.ticksPerSecond)
}

// Ticks converts seconds to a tick count, truncating.
func (t *Timer) Ticks(seconds float64) int {
	return int(seconds * float64(t.ticksPerSecond))
}

// ScheduleAfter cancels any armed action and arms a after seconds.
// With seconds == 0 nothing is armed: a is handed to the foreground at once
// (when it is not ActionNone).
func (t *Timer) ScheduleAfter(seconds float64, a logic.Action) {
	t.mu.Lock()
	t.cancelLocked()

	if seconds == 0 {
		t.fired = a
		t.mu.Unlock()
		if a != logic.ActionNone {
			t.notify()
		}
		return
	}
	if a == logic.ActionNone {
		t.mu.Unlock()
		return
	}

	t.ticks = t.Ticks(seconds)
	if t.ticks < 1 {
		t.ticks = 1
	}
	t.armed = a
	t.mu.Unlock()
	t.enable()
}

// Cancel disarms the timer and forgets any action that expired but was not
// yet taken. It is idempotent.
func (t *Timer) Cancel() {
	t.mu.Lock()
	t.cancelLocked()
	t.mu.Unlock()
	t.enable()
}

func (t *Timer) cancelLocked() {
	t.armed = logic.ActionNone
	t.fired = logic.ActionNone
	t.ticks = 0
}

// RescheduleIfCurrent restarts the countdown with seconds only when a is the
// armed action. Otherwise the armed countdown is left untouched.
func (t *Timer) RescheduleIfCurrent(seconds float64, a logic.Action) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a == logic.ActionNone || a != t.armed {
		return false
	}
	t.ticks = t.Ticks(seconds)
	if t.ticks < 1 {
		t.ticks = 1
	}
	return true
}

// Tick is the timer interrupt. When the countdown reaches zero the armed
// action is cleared, the source disabled and the action parked for
// TakeFired.
func (t *Timer) Tick() {
	t.mu.Lock()
	if t.armed == logic.ActionNone {
		t.mu.Unlock()
		return
	}
	t.ticks--
	if t.ticks > 0 {
		t.mu.Unlock()
		return
	}

	a := t.armed
	t.armed = logic.ActionNone
	t.ticks = 0
	t.fired = a
	t.mu.Unlock()

	t.enable()
	t.notify()
}

// TakeFired returns the action that expired, if any, and clears it.
func (t *Timer) TakeFired() (logic.Action, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.fired
	t.fired = logic.ActionNone
	return a, a != logic.ActionNone
}

// Pending returns the armed action and its remaining ticks.
func (t *Timer) Pending() (logic.Action, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed, t.ticks
}

// Armed reports whether an action is counting down.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed != logic.ActionNone
}

// enable asks Run to start or stop the tick source to match Armed.
func (t *Timer) enable() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Run drives Tick from a ticker that only runs while an action is armed.
// It returns when ctx is cancelled.
func (t *Timer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.Period())
	ticker.Stop()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.kick:
			if t.Armed() {
				ticker.Reset(t.Period())
			} else {
				ticker.Stop()
			}
		case <-ticker.C:
			t.Tick()
		}
	}
}
