// Package gpio provides button input and LED output with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/complex-monitor/internal/logic"

// Button reads the state of the operator push button.
type Button interface {
	// Pressed returns the current level. Edge detection is the caller's job.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// LEDs drives the three indicator lines. The lines are independent; nothing
// in hardware prevents more than one from being lit.
type LEDs interface {
	Set(c logic.Color, on bool) error
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinButton = 24
	DefaultPinRed    = 16
	DefaultPinYellow = 20
	DefaultPinGreen  = 21
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// LEDPins maps indicator colors to BCM line offsets.
type LEDPins struct {
	Red    int
	Yellow int
	Green  int
}

// DefaultLEDPins returns the pins used by the reference wiring.
func DefaultLEDPins() LEDPins {
	return LEDPins{Red: DefaultPinRed, Yellow: DefaultPinYellow, Green: DefaultPinGreen}
}
