package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Outputs       OutputsJSON  `json:"outputs"`
	LastStep      *StepJSON    `json:"last_step,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// OutputsJSON reports the output line levels.
type OutputsJSON struct {
	PowerEnable     bool `json:"power_enable"`
	ShutdownRequest bool `json:"shutdown_request"`
	Indicator       bool `json:"indicator"`
}

// StepJSON is the JSON representation of the last step.
type StepJSON struct {
	Timestamp string `json:"timestamp"`
	Cause     string `json:"cause"`
	From      string `json:"from"`
	To        string `json:"to"`
	Status    string `json:"status"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the counters.
type CountsJSON struct {
	Presses    int `json:"presses"`
	Boots      int `json:"boots"`
	Shutdowns  int `json:"shutdowns"`
	ForcedOffs int `json:"forced_offs"`
	SBCOn      int `json:"sbc_on"`
	SBCOff     int `json:"sbc_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend        string `json:"backend"`
	Chip           string `json:"chip,omitempty"`
	EventPolicy    string `json:"event_policy"`
	DebounceMs     int64  `json:"debounce_ms"`
	LongPressMs    int64  `json:"long_press_ms"`
	TicksPerSecond int    `json:"ticks_per_second"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	SerialDevice   string `json:"serial_device,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State: state,
		Outputs: OutputsJSON{
			PowerEnable:     snap.Outputs.PowerEnable,
			ShutdownRequest: snap.Outputs.ShutdownRequest,
			Indicator:       snap.Outputs.Indicator,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Presses:    snap.Counts.Presses,
			Boots:      snap.Counts.Boots,
			Shutdowns:  snap.Counts.Shutdowns,
			ForcedOffs: snap.Counts.ForcedOffs,
			SBCOn:      snap.Counts.SBCOn,
			SBCOff:     snap.Counts.SBCOff,
		},
	}
	if s := snap.LastStep; s != nil {
		inner.LastStep = &StepJSON{
			Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
			Cause:     s.Cause,
			From:      string(s.From),
			To:        string(s.To),
			Status:    s.Status,
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func buildConfig(cfg Config) *ConfigJSON {
	return &ConfigJSON{
		Backend:        cfg.Backend,
		Chip:           cfg.Chip,
		EventPolicy:    cfg.EventPolicy,
		DebounceMs:     cfg.DebounceMs,
		LongPressMs:    cfg.LongPressMs,
		TicksPerSecond: cfg.TicksPerSecond,
		HeartbeatMs:    cfg.HeartbeatMs,
		Broker:         cfg.Broker,
		HTTPAddr:       cfg.HTTPAddr,
		SerialDevice:   cfg.SerialDevice,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap.Config)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Only STARTUP carries the config; it does not change afterwards.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap.Config)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
