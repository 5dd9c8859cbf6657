package logic

import (
	"testing"
	"time"
)

// fakeTimer records what the machine scheduled.
type fakeTimer struct {
	armed    Action
	seconds  float64
	schedule int
	cancels  int
}

func (f *fakeTimer) ScheduleAfter(seconds float64, a Action) {
	f.schedule++
	f.armed = a
	f.seconds = seconds
}

func (f *fakeTimer) Cancel() {
	f.cancels++
	f.armed = ActionNone
	f.seconds = 0
}

// expire simulates the timer running out and returns the action it held.
func (f *fakeTimer) expire() Action {
	a := f.armed
	f.armed = ActionNone
	return a
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestMachine() (*Machine, *fakeTimer) {
	ft := &fakeTimer{}
	return NewMachine(DefaultConfig(), ft), ft
}

// bootedMachine returns a machine that went OFF -> BOOTING -> ON.
func bootedMachine(t *testing.T) (*Machine, *fakeTimer) {
	t.Helper()
	m, ft := newTestMachine()
	m.Handle(EventButtonPressed, t0)
	m.Fire(ft.expire(), t0.Add(500*time.Millisecond))
	m.Handle(EventButtonReleased, t0.Add(time.Second))
	m.Handle(EventSBCOn, t0.Add(10*time.Second))
	if m.State() != StateOn {
		t.Fatalf("setup: expected ON, got %s", m.State())
	}
	return m, ft
}

func TestNewMachine(t *testing.T) {
	m, _ := newTestMachine()
	if m.State() != StateOff {
		t.Errorf("expected initial state OFF, got %s", m.State())
	}
	if m.Outputs() != (Outputs{}) {
		t.Errorf("expected all outputs cleared, got %+v", m.Outputs())
	}
	if m.Interval() != IntervalNone {
		t.Errorf("expected no interval, got %d", m.Interval())
	}
}

func TestPressSchedulesDebounce(t *testing.T) {
	m, ft := newTestMachine()

	steps := m.Handle(EventButtonPressed, t0)
	if len(steps) != 0 {
		t.Errorf("expected no steps on raw press, got %d", len(steps))
	}
	if ft.armed != ActionConfirmPress {
		t.Errorf("expected CONFIRM_PRESS armed, got %s", ft.armed)
	}
	if ft.seconds != DefaultDebounceSeconds {
		t.Errorf("expected debounce %v, got %v", DefaultDebounceSeconds, ft.seconds)
	}
	if m.State() != StateOff {
		t.Errorf("raw press must not change state, got %s", m.State())
	}
}

func TestShortNoiseWhileOffDoesNotBoot(t *testing.T) {
	m, ft := newTestMachine()

	m.Handle(EventButtonPressed, t0)
	m.Handle(EventButtonReleased, t0.Add(100*time.Millisecond))

	if ft.armed != ActionNone {
		t.Errorf("release must cancel the debounce window, %s still armed", ft.armed)
	}
	if m.State() != StateOff {
		t.Errorf("expected OFF after noise, got %s", m.State())
	}
	if m.Outputs().PowerEnable {
		t.Error("power must stay disabled")
	}
}

func TestHeldPressBoots(t *testing.T) {
	m, ft := newTestMachine()

	m.Handle(EventButtonPressed, t0)
	steps := m.Fire(ft.expire(), t0.Add(500*time.Millisecond))

	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	s := steps[0]
	if s.From != StateOff || s.To != StateBooting {
		t.Errorf("expected OFF -> BOOTING, got %s -> %s", s.From, s.To)
	}
	if s.Status != StatusBooting {
		t.Errorf("expected status %q, got %q", StatusBooting, s.Status)
	}
	if !s.Outputs.PowerEnable || !s.Outputs.Indicator {
		t.Errorf("expected power and indicator on, got %+v", s.Outputs)
	}
	if s.Cause != "CONFIRM_PRESS" {
		t.Errorf("unexpected cause %q", s.Cause)
	}
	if m.Counts().Boots != 1 {
		t.Errorf("expected 1 boot, got %d", m.Counts().Boots)
	}
}

func TestSBCOnAfterBoot(t *testing.T) {
	m, ft := newTestMachine()
	m.Handle(EventButtonPressed, t0)
	m.Fire(ft.expire(), t0)

	steps := m.Handle(EventSBCOn, t0.Add(20*time.Second))
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].To != StateOn || steps[0].Status != StatusOn {
		t.Errorf("expected ON/%q, got %s/%q", StatusOn, steps[0].To, steps[0].Status)
	}
}

func TestSBCOnIgnoredWhileOff(t *testing.T) {
	m, _ := newTestMachine()
	if steps := m.Handle(EventSBCOn, t0); len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
	if m.State() != StateOff {
		t.Errorf("expected OFF, got %s", m.State())
	}
}

func TestLongPressForcesOff(t *testing.T) {
	m, ft := bootedMachine(t)

	m.Handle(EventButtonPressed, t0.Add(time.Minute))
	steps := m.Fire(ft.expire(), t0.Add(time.Minute+500*time.Millisecond))
	if len(steps) != 1 || steps[0].Status != StatusWaitLong {
		t.Fatalf("expected wait-for-long step, got %+v", steps)
	}
	if ft.armed != ActionLongPress || ft.seconds != DefaultLongPressSeconds {
		t.Fatalf("expected LONG_PRESS after %v, got %s after %v", DefaultLongPressSeconds, ft.armed, ft.seconds)
	}
	if m.Interval() != IntervalMedium {
		t.Error("expected medium interval while waiting")
	}

	steps = m.Fire(ft.expire(), t0.Add(time.Minute+5*time.Second))
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].To != StateOff || steps[0].Status != StatusOff {
		t.Errorf("expected OFF, got %s/%q", steps[0].To, steps[0].Status)
	}
	if m.Outputs() != (Outputs{}) {
		t.Errorf("expected all outputs cleared, got %+v", m.Outputs())
	}
	if m.Counts().ForcedOffs != 1 {
		t.Errorf("expected 1 forced off, got %d", m.Counts().ForcedOffs)
	}

	// The release that follows the forced off is a no-op.
	if steps := m.Handle(EventButtonReleased, t0.Add(2*time.Minute)); len(steps) != 0 {
		t.Errorf("expected no steps on release after forced off, got %d", len(steps))
	}
}

func TestMediumPressRequestsShutdown(t *testing.T) {
	m, ft := bootedMachine(t)

	m.Handle(EventButtonPressed, t0.Add(time.Minute))
	m.Fire(ft.expire(), t0.Add(time.Minute+500*time.Millisecond))
	steps := m.Handle(EventButtonReleased, t0.Add(time.Minute+2*time.Second))

	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].From != StateOn || steps[0].To != StateShuttingDown {
		t.Errorf("expected ON -> SHUTDOWN, got %s -> %s", steps[0].From, steps[0].To)
	}
	if !m.Outputs().ShutdownRequest || !m.Outputs().PowerEnable {
		t.Errorf("expected shutdown request with power still on, got %+v", m.Outputs())
	}
	if ft.armed != ActionNone {
		t.Errorf("release must cancel the long-press window, %s still armed", ft.armed)
	}
	if m.Interval() != IntervalNone {
		t.Error("interval must reset on release")
	}
}

func TestShortPressWhileOnIsIgnored(t *testing.T) {
	m, ft := bootedMachine(t)
	cancels := ft.cancels

	m.Handle(EventButtonPressed, t0.Add(time.Minute))
	steps := m.Handle(EventButtonReleased, t0.Add(time.Minute+200*time.Millisecond))

	if len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
	if ft.cancels != cancels+1 {
		t.Error("expected the debounce window to be cancelled")
	}
	if m.State() != StateOn {
		t.Errorf("expected ON, got %s", m.State())
	}
}

func TestShuttingDownIgnoresAllButSBCOff(t *testing.T) {
	m, ft := bootedMachine(t)
	m.Handle(EventButtonPressed, t0)
	m.Fire(ft.expire(), t0)
	m.Handle(EventButtonReleased, t0)
	if m.State() != StateShuttingDown {
		t.Fatalf("setup: expected SHUTDOWN, got %s", m.State())
	}

	schedules := ft.schedule
	for _, ev := range []Event{EventButtonPressed, EventButtonReleased, EventSBCOn, EventNone} {
		if steps := m.Handle(ev, t0); len(steps) != 0 {
			t.Errorf("%s: expected no steps while shutting down, got %d", ev, len(steps))
		}
	}
	if ft.schedule != schedules {
		t.Error("no timer activity expected while shutting down")
	}
	if steps := m.Fire(ActionConfirmPress, t0); len(steps) != 0 {
		t.Errorf("expected confirm press ignored, got %d steps", len(steps))
	}

	steps := m.Handle(EventSBCOff, t0.Add(30*time.Second))
	if len(steps) != 1 || steps[0].To != StateOff {
		t.Fatalf("expected transition to OFF, got %+v", steps)
	}
	if m.Outputs() != (Outputs{}) {
		t.Errorf("expected outputs cleared, got %+v", m.Outputs())
	}
}

func TestSBCOffFromEveryState(t *testing.T) {
	setups := map[State]func(t *testing.T) *Machine{
		StateOff: func(t *testing.T) *Machine {
			m, _ := newTestMachine()
			return m
		},
		StateBooting: func(t *testing.T) *Machine {
			m, ft := newTestMachine()
			m.Handle(EventButtonPressed, t0)
			m.Fire(ft.expire(), t0)
			return m
		},
		StateOn: func(t *testing.T) *Machine {
			m, _ := bootedMachine(t)
			return m
		},
		StateShuttingDown: func(t *testing.T) *Machine {
			m, ft := bootedMachine(t)
			m.Handle(EventButtonPressed, t0)
			m.Fire(ft.expire(), t0)
			m.Handle(EventButtonReleased, t0)
			return m
		},
	}

	for state, setup := range setups {
		t.Run(string(state), func(t *testing.T) {
			m := setup(t)
			if m.State() != state {
				t.Fatalf("setup: expected %s, got %s", state, m.State())
			}
			for i := 0; i < 2; i++ {
				steps := m.Handle(EventSBCOff, t0)
				if len(steps) != 1 || steps[0].Status != StatusOff {
					t.Fatalf("round %d: expected Off step, got %+v", i, steps)
				}
				if m.State() != StateOff {
					t.Errorf("round %d: expected OFF, got %s", i, m.State())
				}
				if m.Outputs() != (Outputs{}) {
					t.Errorf("round %d: expected outputs cleared, got %+v", i, m.Outputs())
				}
			}
		})
	}
}

func TestButtonProbeRejectsReleasedButton(t *testing.T) {
	m, ft := newTestMachine()
	held := false
	m.SetButtonProbe(func() bool { return held })

	m.Handle(EventButtonPressed, t0)
	if steps := m.Fire(ft.expire(), t0.Add(500*time.Millisecond)); len(steps) != 0 {
		t.Errorf("expected no boot with released button, got %d steps", len(steps))
	}
	if m.State() != StateOff {
		t.Errorf("expected OFF, got %s", m.State())
	}

	held = true
	m.Handle(EventButtonPressed, t0.Add(time.Second))
	m.Fire(ft.expire(), t0.Add(1500*time.Millisecond))
	if m.State() != StateBooting {
		t.Errorf("expected BOOTING with held button, got %s", m.State())
	}
}

func TestLongPressFromBooting(t *testing.T) {
	m, ft := newTestMachine()
	m.Handle(EventButtonPressed, t0)
	m.Fire(ft.expire(), t0)
	m.Handle(EventButtonReleased, t0.Add(time.Second))

	m.Handle(EventButtonPressed, t0.Add(5*time.Second))
	m.Fire(ft.expire(), t0.Add(5500*time.Millisecond))
	steps := m.Fire(ft.expire(), t0.Add(10*time.Second))

	if len(steps) != 1 || steps[0].From != StateBooting || steps[0].To != StateOff {
		t.Fatalf("expected BOOTING -> OFF, got %+v", steps)
	}
}

func TestLongPressWhileOffIsNoop(t *testing.T) {
	m, _ := newTestMachine()
	if steps := m.Fire(ActionLongPress, t0); len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
	if m.Counts().ForcedOffs != 0 {
		t.Error("forced off must not be counted while already OFF")
	}
}

func TestFireNoneIsNoop(t *testing.T) {
	m, _ := newTestMachine()
	if steps := m.Fire(ActionNone, t0); len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
}

func TestStepTimestamps(t *testing.T) {
	m, ft := newTestMachine()
	m.Handle(EventButtonPressed, t0)
	at := t0.Add(500 * time.Millisecond)
	steps := m.Fire(ft.expire(), at)
	if !steps[0].Timestamp.Equal(at) {
		t.Errorf("expected timestamp %v, got %v", at, steps[0].Timestamp)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := []Config{
		{DebounceSeconds: 0, LongPressSeconds: 4.5},
		{DebounceSeconds: 0.5, LongPressSeconds: 0},
		{DebounceSeconds: -1, LongPressSeconds: 4.5},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}

func TestEventAndActionStrings(t *testing.T) {
	events := map[Event]string{
		EventNone:           "NONE",
		EventButtonPressed:  "BUTTON_PRESSED",
		EventButtonReleased: "BUTTON_RELEASED",
		EventSBCOn:          "SBC_ON",
		EventSBCOff:         "SBC_OFF",
		Event(99):           "UNKNOWN",
	}
	for ev, want := range events {
		if got := ev.String(); got != want {
			t.Errorf("Event(%d): got %q, want %q", ev, got, want)
		}
	}
	if ActionLongPress.String() != "LONG_PRESS" {
		t.Errorf("unexpected action string %q", ActionLongPress.String())
	}
}
