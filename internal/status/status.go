// Package status provides a thread-safe status tracker for the power
// controller daemon. It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend        string
	Chip           string
	EventPolicy    string
	DebounceMs     int64
	LongPressMs    int64
	TicksPerSecond int
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
	SerialDevice   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	Outputs       logic.Outputs
	Counts        logic.Counts
	LastStep      *logic.Step
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateOff,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the machine state, outputs and counters.
// Called from the power loop after every wake.
func (t *Tracker) Update(state logic.State, outputs logic.Outputs, counts logic.Counts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Outputs = outputs
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordStep remembers the most recent step.
func (t *Tracker) RecordStep(step logic.Step) {
	t.mu.Lock()
	t.snap.LastStep = &step
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastStep != nil {
		step := *s.LastStep
		s.LastStep = &step
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
