package logic

import (
	"errors"
	"time"
)

// Default timing windows in seconds.
const (
	DefaultDebounceSeconds  = 0.5
	DefaultLongPressSeconds = 4.5
)

// Config holds the timing windows of the machine.
type Config struct {
	// DebounceSeconds is how long a press must last before it is accepted.
	DebounceSeconds float64
	// LongPressSeconds is how long an accepted press must be held, while
	// powered, before the power is forced off.
	LongPressSeconds float64
}

// DefaultConfig returns the stock timing windows.
func DefaultConfig() Config {
	return Config{
		DebounceSeconds:  DefaultDebounceSeconds,
		LongPressSeconds: DefaultLongPressSeconds,
	}
}

// Validate reports a configuration the timer cannot honour.
func (c Config) Validate() error {
	if c.DebounceSeconds <= 0 {
		return errors.New("debounce window must be positive")
	}
	if c.LongPressSeconds <= 0 {
		return errors.New("long-press window must be positive")
	}
	return nil
}

// Machine is the power state machine. It is not safe for concurrent use:
// only the foreground loop calls Handle and Fire.
type Machine struct {
	cfg      Config
	timer    Timer
	held     func() bool
	state    State
	interval Interval
	outputs  Outputs
	counts   Counts
}

// NewMachine creates a machine in the OFF state with every output cleared.
func NewMachine(cfg Config, timer Timer) *Machine {
	return &Machine{
		cfg:   cfg,
		timer: timer,
		state: StateOff,
	}
}

// SetButtonProbe installs a probe that re-reads the button when a debounce
// window elapses. Without a probe, a release cancelling the window is the
// only filter.
func (m *Machine) SetButtonProbe(held func() bool) {
	m.held = held
}

// Handle consumes one event and returns the resulting steps.
// Events other than SBC_OFF are ignored while shutting down.
func (m *Machine) Handle(ev Event, now time.Time) []Step {
	if m.state == StateShuttingDown && ev != EventSBCOff {
		return nil
	}

	switch ev {
	case EventButtonPressed:
		m.interval = IntervalNone
		m.timer.ScheduleAfter(m.cfg.DebounceSeconds, ActionConfirmPress)
		return nil

	case EventButtonReleased:
		return m.buttonReleased(ev, now)

	case EventSBCOn:
		if m.state != StateBooting && m.state != StateOn {
			return nil
		}
		m.counts.SBCOn++
		from := m.state
		m.state = StateOn
		m.outputs.Indicator = true
		return []Step{m.step(ev.String(), from, StatusOn, now)}

	case EventSBCOff:
		m.counts.SBCOff++
		return []Step{m.powerOff(ev.String(), now)}
	}
	return nil
}

// Fire runs a deferred action that expired on the timer.
func (m *Machine) Fire(a Action, now time.Time) []Step {
	switch a {
	case ActionConfirmPress:
		return m.buttonPressed(a, now)
	case ActionLongPress:
		if m.state == StateOff {
			m.interval = IntervalNone
			return nil
		}
		m.interval = IntervalNone
		m.counts.ForcedOffs++
		return []Step{m.powerOff(a.String(), now)}
	}
	return nil
}

func (m *Machine) buttonPressed(a Action, now time.Time) []Step {
	if m.state == StateShuttingDown {
		return nil
	}
	if m.held != nil && !m.held() {
		m.interval = IntervalNone
		return nil
	}
	m.counts.Presses++

	if m.state != StateOff {
		m.interval = IntervalMedium
		m.timer.ScheduleAfter(m.cfg.LongPressSeconds, ActionLongPress)
		return []Step{m.step(a.String(), m.state, StatusWaitLong, now)}
	}

	m.interval = IntervalNone
	m.counts.Boots++
	m.state = StateBooting
	m.outputs.Indicator = true
	m.outputs.PowerEnable = true
	return []Step{m.step(a.String(), StateOff, StatusBooting, now)}
}

func (m *Machine) buttonReleased(ev Event, now time.Time) []Step {
	m.timer.Cancel()

	var steps []Step
	if m.interval == IntervalMedium && m.state != StateOff {
		from := m.state
		m.counts.Shutdowns++
		m.state = StateShuttingDown
		m.outputs.ShutdownRequest = true
		steps = append(steps, m.step(ev.String(), from, StatusShutdown, now))
	}
	m.interval = IntervalNone
	return steps
}

func (m *Machine) powerOff(cause string, now time.Time) Step {
	from := m.state
	m.state = StateOff
	m.outputs = Outputs{}
	return m.step(cause, from, StatusOff, now)
}

func (m *Machine) step(cause string, from State, status string, now time.Time) Step {
	return Step{
		Timestamp: now,
		Cause:     cause,
		From:      from,
		To:        m.state,
		Status:    status,
		Outputs:   m.outputs,
	}
}

// State returns the current power state.
func (m *Machine) State() State {
	return m.state
}

// Interval returns the progress of the current button hold.
func (m *Machine) Interval() Interval {
	return m.interval
}

// Outputs returns the current output levels.
func (m *Machine) Outputs() Outputs {
	return m.outputs
}

// Counts returns a copy of the effect counters.
func (m *Machine) Counts() Counts {
	return m.counts
}
