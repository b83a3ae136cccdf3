package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/complex-monitor/internal/logic"
)

// FakeButton is a test double that returns scripted button levels.
type FakeButton struct {
	mu sync.Mutex

	// Samples contains scripted levels to return.
	// Each call to Pressed() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Reads counts calls to Pressed.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples ...bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++

	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// LEDChange is one recorded Set call.
type LEDChange struct {
	Color logic.Color
	On    bool
}

// FakeLEDs records LED levels and the sequence of Set calls.
type FakeLEDs struct {
	mu      sync.Mutex
	state   map[logic.Color]bool
	history []LEDChange

	// SetError, if set, will be returned by Set after recording the call.
	SetError error

	Closed bool
}

// NewFakeLEDs creates FakeLEDs with every LED off.
func NewFakeLEDs() *FakeLEDs {
	return &FakeLEDs{state: make(map[logic.Color]bool, 3)}
}

// Set records the level.
func (f *FakeLEDs) Set(c logic.Color, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, LEDChange{Color: c, On: on})
	if f.SetError != nil {
		return f.SetError
	}
	f.state[c] = on
	return nil
}

// IsOn reports the recorded level of one LED.
func (f *FakeLEDs) IsOn(c logic.Color) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[c]
}

// Lit returns every LED currently on.
func (f *FakeLEDs) Lit() []logic.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lit []logic.Color
	for _, c := range logic.Colors {
		if f.state[c] {
			lit = append(lit, c)
		}
	}
	return lit
}

// History returns a copy of the recorded Set calls.
func (f *FakeLEDs) History() []LEDChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LEDChange, len(f.history))
	copy(out, f.history)
	return out
}

// Close marks the LEDs as closed.
func (f *FakeLEDs) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
