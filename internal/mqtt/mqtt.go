// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/atx-powerctl/internal/logic"
)

// Topic is the MQTT topic for power state steps.
const Topic = "power/atx/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "power/atx/controller/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a power state step to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(step logic.Step) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Power PowerPayload `json:"power"`
}

// PowerPayload contains the step details.
type PowerPayload struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Status    string         `json:"status"`
	From      string         `json:"from"`
	State     string         `json:"state"`
	Outputs   OutputsPayload `json:"outputs"`
}

// OutputsPayload reports the output line levels.
type OutputsPayload struct {
	PowerEnable     bool `json:"power_enable"`
	ShutdownRequest bool `json:"shutdown_request"`
	Indicator       bool `json:"indicator"`
}

// FormatPayload creates the JSON payload for a step.
func FormatPayload(step logic.Step) ([]byte, error) {
	payload := Payload{
		Power: PowerPayload{
			Timestamp: step.Timestamp.UTC().Format(time.RFC3339),
			Event:     step.Cause,
			Status:    step.Status,
			From:      string(step.From),
			State:     string(step.To),
			Outputs: OutputsPayload{
				PowerEnable:     step.Outputs.PowerEnable,
				ShutdownRequest: step.Outputs.ShutdownRequest,
				Indicator:       step.Outputs.Indicator,
			},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes when the
// controller drops off without a clean disconnect.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	return data
}
