package gpio

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/logic"
)

// SimButton is a software button for running without hardware.
// Each call to Press makes the next Pressed read return true once.
type SimButton struct {
	pending atomic.Int32
	held    atomic.Bool
}

// NewSimButton creates a released SimButton.
func NewSimButton() *SimButton {
	return &SimButton{}
}

// Press queues one press.
func (b *SimButton) Press() {
	b.pending.Add(1)
}

// Pressed consumes one queued press. Presses are separated by a released read
// so each one is seen as a new edge.
func (b *SimButton) Pressed() (bool, error) {
	if b.held.Swap(false) {
		return false, nil
	}
	for {
		n := b.pending.Load()
		if n <= 0 {
			return false, nil
		}
		if b.pending.CompareAndSwap(n, n-1) {
			b.held.Store(true)
			return true, nil
		}
	}
}

// Close is a no-op.
func (b *SimButton) Close() error {
	return nil
}

// SimLEDs logs LED changes instead of driving hardware.
type SimLEDs struct {
	mu     sync.Mutex
	state  map[logic.Color]bool
	logger *zap.Logger
}

// NewSimLEDs creates SimLEDs that report changes to logger.
func NewSimLEDs(logger *zap.Logger) *SimLEDs {
	return &SimLEDs{state: make(map[logic.Color]bool, 3), logger: logger}
}

// Set records the LED level and logs transitions.
func (l *SimLEDs) Set(c logic.Color, on bool) error {
	l.mu.Lock()
	changed := l.state[c] != on
	l.state[c] = on
	l.mu.Unlock()

	if changed {
		l.logger.Debug("led", zap.String("color", string(c)), zap.Bool("on", on))
	}
	return nil
}

// Close is a no-op.
func (l *SimLEDs) Close() error {
	return nil
}
