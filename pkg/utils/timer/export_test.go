package timer

import "time"

// NewWithClock creates a timer driven by the given clock for deterministic tests.
func NewWithClock(now func() time.Time) *StageTimer {
	return &StageTimer{now: now}
}
