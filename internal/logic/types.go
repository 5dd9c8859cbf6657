// Package logic contains the pure power-sequencing logic: event classification,
// the power state machine and its deferred actions.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Event is a discrete pin transition produced by the edge detector.
type Event uint32

const (
	EventNone Event = iota
	EventButtonPressed
	EventButtonReleased
	EventSBCOn
	EventSBCOff
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "NONE"
	case EventButtonPressed:
		return "BUTTON_PRESSED"
	case EventButtonReleased:
		return "BUTTON_RELEASED"
	case EventSBCOn:
		return "SBC_ON"
	case EventSBCOff:
		return "SBC_OFF"
	}
	return "UNKNOWN"
}

// State is the power state of the attached SBC.
type State string

const (
	StateOff          State = "OFF"
	StateBooting      State = "BOOTING"
	StateOn           State = "ON"
	StateShuttingDown State = "SHUTDOWN"
)

// Action is a deferred action the timer can hold. The set is closed: the timer
// never stores arbitrary callbacks.
type Action uint8

const (
	ActionNone Action = iota
	// ActionConfirmPress accepts a button press once the debounce window elapsed.
	ActionConfirmPress
	// ActionLongPress forces the power off after the long-press window.
	ActionLongPress
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionConfirmPress:
		return "CONFIRM_PRESS"
	case ActionLongPress:
		return "LONG_PRESS"
	}
	return "UNKNOWN"
}

// Interval tracks how far a held button has progressed.
type Interval uint8

const (
	IntervalNone Interval = iota
	// IntervalMedium means a press was confirmed while powered and the
	// long-press window is running.
	IntervalMedium
)

// Status tokens written to the diagnostic sink.
const (
	StatusInitialized = "Initialized"
	StatusBooting     = "Booting"
	StatusOn          = "On"
	StatusOff         = "Off"
	StatusShutdown    = "Shutdown"
	StatusWaitLong    = "Wait for long-button event"
)

// Outputs is the desired level of every output line.
type Outputs struct {
	PowerEnable     bool
	ShutdownRequest bool
	Indicator       bool
}

// Step is one observable effect of the state machine.
type Step struct {
	Timestamp time.Time
	// Cause is the event or action name that produced the step.
	Cause   string
	From    State
	To      State
	Status  string
	Outputs Outputs
}

// Counts tracks the number of each effect since startup.
type Counts struct {
	Presses    int
	Boots      int
	Shutdowns  int
	ForcedOffs int
	SBCOn      int
	SBCOff     int
}

// Timer is the deferred action timer as seen by the state machine.
type Timer interface {
	// ScheduleAfter cancels any armed action and arms a after seconds.
	ScheduleAfter(seconds float64, a Action)
	// Cancel disarms the timer. It is idempotent.
	Cancel()
}
