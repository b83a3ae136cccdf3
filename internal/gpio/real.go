//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/complex-monitor/internal/logic"
)

// RealButton reads a push button wired between a GPIO line and ground.
type RealButton struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealButton requests the button line as an input with pull-up.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Pressed shorts the line to ground, so the logical value is active-low.
	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}

	return &RealButton{chip: chip, line: line}, nil
}

// Pressed returns true while the button is held down.
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}

// Close releases the line and chip.
func (b *RealButton) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealLEDs drives indicator LEDs on three output lines.
type RealLEDs struct {
	chip  *gpiocdev.Chip
	lines map[logic.Color]*gpiocdev.Line
}

// NewRealLEDs requests the LED lines as outputs, initially off.
func NewRealLEDs(chipName string, pins LEDPins) (*RealLEDs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	l := &RealLEDs{chip: chip, lines: make(map[logic.Color]*gpiocdev.Line, 3)}
	for c, pin := range map[logic.Color]int{
		logic.ColorRed:    pins.Red,
		logic.ColorYellow: pins.Yellow,
		logic.ColorGreen:  pins.Green,
	} {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("request %s led pin %d: %w", c, pin, err)
		}
		l.lines[c] = line
	}
	return l, nil
}

// Set drives one LED.
func (l *RealLEDs) Set(c logic.Color, on bool) error {
	line, ok := l.lines[c]
	if !ok {
		return fmt.Errorf("unknown led %q", c)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set %s led: %w", c, err)
	}
	return nil
}

// Close turns every LED off and reconfigures the lines as inputs with
// pull-down, matching Pi boot defaults, before releasing them.
func (l *RealLEDs) Close() error {
	var errs []error
	for c, line := range l.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("turn off %s led: %w", c, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s led: %w", c, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s led: %w", c, err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
