// Package system is the wall clock behind run reports. The coordinator stamps
// started_at and finished_at with it and workers time each job against it.
package system

import "time"

// Clock implements crawler.Clock. Times are UTC so metrics.json is stable
// across hosts.
type Clock struct{}

// New returns the wall clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time. The monotonic reading is kept so job
// durations measured with Sub are immune to wall clock steps.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
