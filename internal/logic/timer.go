package logic

import "time"

// PublishTimer fires at a fixed interval. After each fire the next deadline
// is computed from the fire time, so a late tick pushes the schedule back
// rather than producing a burst of catch-up fires.
type PublishTimer struct {
	nextDue  time.Time
	interval time.Duration
}

// NewPublishTimer creates a timer that is due at first.
func NewPublishTimer(first time.Time, interval time.Duration) *PublishTimer {
	return &PublishTimer{nextDue: first, interval: interval}
}

// Fire reports whether the timer is due at now. When it is, the next
// deadline becomes now + interval.
func (t *PublishTimer) Fire(now time.Time) bool {
	if now.Before(t.nextDue) {
		return false
	}
	t.nextDue = now.Add(t.interval)
	return true
}

// NextDue returns the next deadline.
func (t *PublishTimer) NextDue() time.Time {
	return t.nextDue
}

// Interval returns the configured interval.
func (t *PublishTimer) Interval() time.Duration {
	return t.interval
}
