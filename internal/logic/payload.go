package logic

import "encoding/json"

// Payload is the telemetry record sent to the dashboard and the broker.
// Field names are part of the external contract.
type Payload struct {
	Identity    string   `json:"identity"`
	Uptime      string   `json:"uptime"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// BuildPayload assembles a payload. Identity and uptime are always set;
// readings are only included when the corresponding read succeeded.
func BuildPayload(identity, uptime string, r Readings) Payload {
	p := Payload{
		Identity: identity,
		Uptime:   uptime,
	}
	// Copy so the payload does not alias the caller's readings.
	if r.Temperature != nil {
		t := *r.Temperature
		p.Temperature = &t
	}
	if r.Humidity != nil {
		h := *r.Humidity
		p.Humidity = &h
	}
	return p
}

// JSON returns the wire encoding of the payload.
func (p Payload) JSON() ([]byte, error) {
	return json.Marshal(p)
}
