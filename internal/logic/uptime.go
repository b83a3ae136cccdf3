package logic

import (
	"fmt"
	"time"
)

const (
	secondsPerDay    = 86400
	secondsPerHour   = 3600
	secondsPerMinute = 60
)

// FormatUptime renders the whole seconds between start and now as
// "{days}d:{hours}h:{minutes}m:{seconds}s". A now before start yields zero.
func FormatUptime(start, now time.Time) string {
	total := int64(now.Sub(start) / time.Second)
	if total < 0 {
		total = 0
	}

	days := total / secondsPerDay
	rem := total % secondsPerDay
	hours := rem / secondsPerHour
	rem %= secondsPerHour
	minutes := rem / secondsPerMinute
	seconds := rem % secondsPerMinute

	return fmt.Sprintf("%dd:%dh:%dm:%ds", days, hours, minutes, seconds)
}
