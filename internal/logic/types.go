// Package logic contains the pure decision logic of the monitoring node.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Color identifies one indicator LED.
type Color string

const (
	ColorNone   Color = ""
	ColorRed    Color = "RED"
	ColorYellow Color = "YELLOW"
	ColorGreen  Color = "GREEN"
)

// Colors lists every indicator channel in the order they are switched off.
var Colors = []Color{ColorRed, ColorYellow, ColorGreen}

// ConnStatus is the broker connection state owned by the connection supervisor.
type ConnStatus string

const (
	Disconnected ConnStatus = "DISCONNECTED"
	Connecting   ConnStatus = "CONNECTING"
	Connected    ConnStatus = "CONNECTED"
)

// Phase is the lifecycle phase of the coordinator loop.
// Transitions are linear: STARTING → RUNNING → STOPPING → STOPPED.
type Phase string

const (
	PhaseStarting Phase = "STARTING"
	PhaseRunning  Phase = "RUNNING"
	PhaseStopping Phase = "STOPPING"
	PhaseStopped  Phase = "STOPPED"
)

// Readings holds one sample from the environmental sensor.
// A nil field means the read failed; it is never reported as zero.
type Readings struct {
	Temperature *float64
	Humidity    *float64
}

// ConnectionState is the broker state as observed by readers.
type ConnectionState struct {
	Status      ConnStatus
	LastAttempt time.Time
}
