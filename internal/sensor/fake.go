package sensor

import (
	"errors"
	"sync"
)

// ErrReadFailed is returned by FakeSensor for a scripted failure.
var ErrReadFailed = errors.New("sensor read failed")

// FakeSensor returns fixed readings. A nil field simulates a failed read.
type FakeSensor struct {
	mu    sync.Mutex
	temp  *float64
	humid *float64
	reads int
}

// NewFakeSensor creates a FakeSensor. Pass nil to make a reading fail.
func NewFakeSensor(temp, humid *float64) *FakeSensor {
	return &FakeSensor{temp: temp, humid: humid}
}

// Set replaces the scripted readings.
func (f *FakeSensor) Set(temp, humid *float64) {
	f.mu.Lock()
	f.temp, f.humid = temp, humid
	f.mu.Unlock()
}

// Temperature returns the scripted temperature.
func (f *FakeSensor) Temperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.temp == nil {
		return 0, ErrReadFailed
	}
	return *f.temp, nil
}

// Humidity returns the scripted humidity.
func (f *FakeSensor) Humidity() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.humid == nil {
		return 0, ErrReadFailed
	}
	return *f.humid, nil
}

// Reads returns the number of read calls.
func (f *FakeSensor) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Float is a helper for building optional readings.
func Float(v float64) *float64 {
	return &v
}
