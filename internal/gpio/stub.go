//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/complex-monitor/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	return nil, errUnsupported
}

// Pressed is not implemented on non-Linux platforms.
func (b *RealButton) Pressed() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}

// RealLEDs is not available on non-Linux platforms.
type RealLEDs struct{}

// NewRealLEDs returns an error on non-Linux platforms.
func NewRealLEDs(chipName string, pins LEDPins) (*RealLEDs, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (l *RealLEDs) Set(c logic.Color, on bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (l *RealLEDs) Close() error {
	return nil
}
