// Package indicator drives the three status LEDs so that at most one is lit.
package indicator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/logic"
)

// Driver switches a single LED channel.
type Driver interface {
	Set(c logic.Color, on bool) error
}

// Controller enforces the single-lit-color rule on top of a Driver.
type Controller struct {
	driver Driver
	logger *zap.Logger

	mu      sync.Mutex
	current logic.Color
}

// New returns a Controller with every channel assumed off.
func New(d Driver, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{driver: d, logger: logger}
}

// Show lights c. Every other channel is switched off before c is switched on,
// so two colors are never lit at once. Driver errors are logged.
func (c *Controller) Show(color logic.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, other := range logic.Colors {
		if other != color {
			c.set(other, false)
		}
	}
	if color != logic.ColorNone {
		c.set(color, true)
	}
	if c.current != color {
		c.logger.Debug("indicator", zap.String("color", string(color)))
	}
	c.current = color
}

// Off switches every channel off.
func (c *Controller) Off() {
	c.Show(logic.ColorNone)
}

// Current returns the color last shown, ColorNone after Off.
func (c *Controller) Current() logic.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) set(color logic.Color, on bool) {
	if err := c.driver.Set(color, on); err != nil {
		c.logger.Warn("led write failed",
			zap.String("color", string(color)),
			zap.Bool("on", on),
			zap.Error(err))
	}
}
