// Package status provides a thread-safe status tracker for the monitoring node.
// The coordinator writes it once per tick; dashboard handlers read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/complex-monitor/internal/logic"
)

// Config contains node configuration for display.
type Config struct {
	Identity   string
	Broker     string
	Topic      string
	WebAddr    string
	IntervalMs int64
}

// Counts tallies outcomes since start.
type Counts struct {
	Published      int
	PublishFailed  int
	DroppedPresses int
	Pushes         int
}

// Snapshot is a point-in-time view of node state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	BootID     string
	Phase      logic.Phase
	Connection logic.ConnectionState
	Indicator  logic.Color
	Readings   logic.Readings
	Uptime     string
	Counts     Counts
	StartTime  time.Time
	Now        time.Time
	Config     Config
}

// Elapsed returns the duration since the node started.
func (s Snapshot) Elapsed() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable node state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, boot id and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:     bootID,
			Phase:      logic.PhaseStarting,
			Connection: logic.ConnectionState{Status: logic.Disconnected},
			StartTime:  startTime,
			Config:     cfg,
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used by Snapshot.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// SetPhase records the coordinator phase.
func (t *Tracker) SetPhase(p logic.Phase) {
	t.mu.Lock()
	t.snap.Phase = p
	t.mu.Unlock()
}

// Update records the per-tick state. Called from the coordinator loop.
func (t *Tracker) Update(conn logic.ConnectionState, indicator logic.Color, readings logic.Readings, uptime string) {
	t.mu.Lock()
	t.snap.Connection = conn
	t.snap.Indicator = indicator
	t.snap.Readings = copyReadings(readings)
	t.snap.Uptime = uptime
	t.mu.Unlock()
}

// RecordPublish counts one broker publish outcome.
func (t *Tracker) RecordPublish(ok bool) {
	t.mu.Lock()
	if ok {
		t.snap.Counts.Published++
	} else {
		t.snap.Counts.PublishFailed++
	}
	t.mu.Unlock()
}

// RecordDroppedPress counts a press that was not published.
func (t *Tracker) RecordDroppedPress() {
	t.mu.Lock()
	t.snap.Counts.DroppedPresses++
	t.mu.Unlock()
}

// RecordPush counts one dashboard data push.
func (t *Tracker) RecordPush() {
	t.mu.Lock()
	t.snap.Counts.Pushes++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the node state.
// The Now field is set from the tracker clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Readings = copyReadings(s.Readings)
	s.Now = now()
	return s
}

func copyReadings(r logic.Readings) logic.Readings {
	var out logic.Readings
	if r.Temperature != nil {
		v := *r.Temperature
		out.Temperature = &v
	}
	if r.Humidity != nil {
		v := *r.Humidity
		out.Humidity = &v
	}
	return out
}
