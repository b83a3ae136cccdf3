package indicator

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/complex-monitor/internal/gpio"
	"github.com/sweeney/complex-monitor/internal/logic"
)

// maxLit replays the recorded Set calls and returns the largest number of
// channels that were on at the same time.
func maxLit(history []gpio.LEDChange) int {
	state := map[logic.Color]bool{}
	max := 0
	for _, ch := range history {
		state[ch.Color] = ch.On
		n := 0
		for _, on := range state {
			if on {
				n++
			}
		}
		if n > max {
			max = n
		}
	}
	return max
}

func TestShowLightsExactlyOne(t *testing.T) {
	leds := gpio.NewFakeLEDs()
	c := New(leds, zap.NewNop())

	for _, color := range []logic.Color{logic.ColorRed, logic.ColorYellow, logic.ColorGreen, logic.ColorRed} {
		c.Show(color)
		lit := leds.Lit()
		if len(lit) != 1 || lit[0] != color {
			t.Errorf("after Show(%s): lit = %v", color, lit)
		}
		if c.Current() != color {
			t.Errorf("Current: got %s, want %s", c.Current(), color)
		}
	}
}

func TestShowNeverTwoLit(t *testing.T) {
	leds := gpio.NewFakeLEDs()
	c := New(leds, zap.NewNop())

	c.Show(logic.ColorRed)
	c.Show(logic.ColorGreen)
	c.Show(logic.ColorYellow)
	c.Show(logic.ColorYellow)
	c.Show(logic.ColorRed)

	if n := maxLit(leds.History()); n > 1 {
		t.Errorf("at some point %d LEDs were lit together", n)
	}
}

func TestShowSwitchesOthersOffFirst(t *testing.T) {
	leds := gpio.NewFakeLEDs()
	c := New(leds, zap.NewNop())

	c.Show(logic.ColorGreen)
	h := leds.History()
	if len(h) == 0 {
		t.Fatal("no writes recorded")
	}
	last := h[len(h)-1]
	if last != (gpio.LEDChange{Color: logic.ColorGreen, On: true}) {
		t.Errorf("last write: got %+v, want GREEN on", last)
	}
	for _, ch := range h[:len(h)-1] {
		if ch.On {
			t.Errorf("unexpected on-write before the requested color: %+v", ch)
		}
	}
}

func TestOff(t *testing.T) {
	leds := gpio.NewFakeLEDs()
	c := New(leds, zap.NewNop())

	c.Show(logic.ColorYellow)
	c.Off()

	if lit := leds.Lit(); len(lit) != 0 {
		t.Errorf("lit after Off: %v", lit)
	}
	if c.Current() != logic.ColorNone {
		t.Errorf("Current after Off: got %q", c.Current())
	}
}

func TestDriverErrorsAreLogged(t *testing.T) {
	leds := gpio.NewFakeLEDs()
	leds.SetError = errors.New("line busy")
	core, logs := observer.New(zapcore.WarnLevel)
	c := New(leds, zap.New(core))

	c.Show(logic.ColorRed)

	if got := logs.FilterMessage("led write failed").Len(); got != len(logic.Colors) {
		t.Errorf("warnings: got %d, want %d", got, len(logic.Colors))
	}
	if c.Current() != logic.ColorRed {
		t.Errorf("Current: got %s, want RED", c.Current())
	}
}
