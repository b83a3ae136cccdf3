package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/complex-monitor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Identity      string       `json:"identity"`
	BootID        string       `json:"boot_id"`
	Phase         string       `json:"phase"`
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Indicator     string       `json:"indicator"`
	Broker        BrokerStatus `json:"broker"`
	Readings      ReadingsJSON `json:"readings"`
	Counts        CountsJSON   `json:"counts"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// BrokerStatus reports the broker connection state.
type BrokerStatus struct {
	State       string `json:"state"`
	Connected   bool   `json:"connected"`
	Endpoint    string `json:"endpoint"`
	LastAttempt string `json:"last_attempt,omitempty"`
}

// ReadingsJSON carries the latest sensor values. Absent readings are omitted.
type ReadingsJSON struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// CountsJSON is the JSON representation of Counts.
type CountsJSON struct {
	Published      int `json:"published"`
	PublishFailed  int `json:"publish_failed"`
	DroppedPresses int `json:"dropped_presses"`
	Pushes         int `json:"dashboard_pushes"`
}

// ConfigJSON is the JSON representation of node config.
type ConfigJSON struct {
	Broker     string `json:"broker"`
	Topic      string `json:"topic"`
	WebAddr    string `json:"web_addr"`
	IntervalMs int64  `json:"interval_ms"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}
	indicator := string(snap.Indicator)
	if indicator == "" {
		indicator = "OFF"
	}

	inner := StatusInner{
		Identity:      snap.Config.Identity,
		BootID:        snap.BootID,
		Phase:         phase,
		Uptime:        snap.Uptime,
		UptimeSeconds: int64(snap.Elapsed().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Indicator:     indicator,
		Broker: BrokerStatus{
			State:     string(snap.Connection.Status),
			Connected: snap.Connection.Status == logic.Connected,
			Endpoint:  snap.Config.Broker,
		},
		Readings: ReadingsJSON{
			Temperature: snap.Readings.Temperature,
			Humidity:    snap.Readings.Humidity,
		},
		Counts: CountsJSON{
			Published:      snap.Counts.Published,
			PublishFailed:  snap.Counts.PublishFailed,
			DroppedPresses: snap.Counts.DroppedPresses,
			Pushes:         snap.Counts.Pushes,
		},
	}
	if !snap.Connection.LastAttempt.IsZero() {
		inner.Broker.LastAttempt = snap.Connection.LastAttempt.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = &ConfigJSON{
		Broker:     snap.Config.Broker,
		Topic:      snap.Config.Topic,
		WebAddr:    snap.Config.WebAddr,
		IntervalMs: snap.Config.IntervalMs,
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// StatusEvent returns the compact status pushed to dashboard clients.
// It omits the static config block.
func StatusEvent(snap Snapshot) StatusJSON {
	return StatusJSON{Status: buildInner(snap)}
}
