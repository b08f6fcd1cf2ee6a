// Package timer tracks total and per-stage elapsed time for CLI output.
package timer

import (
	"sync"
	"time"
)

// Timer measures the total elapsed time of a command and the time spent in its current stage.
type Timer interface {
	// Start begins timing. Calling Start again resets both total and stage time.
	Start()
	// NewStage marks the beginning of a new stage.
	NewStage()
	// GetTiming returns the total elapsed time and the elapsed time of the current stage.
	GetTiming() (time.Duration, time.Duration)
	// Stop freezes the timer.
	Stop()
}

// StageTimer is the default Timer implementation.
type StageTimer struct {
	mu         sync.Mutex
	now        func() time.Time
	startTime  time.Time
	stageStart time.Time
	stopTime   time.Time
	stopped    bool
}

var _ Timer = (*StageTimer)(nil)

// New creates a new, not yet started timer.
func New() *StageTimer {
	return &StageTimer{now: time.Now}
}

// Start begins timing.
func (t *StageTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.startTime = now
	t.stageStart = now
	t.stopped = false
}

// NewStage marks the beginning of a new stage.
func (t *StageTimer) NewStage() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stageStart = t.now()
}

// GetTiming returns the total and current stage durations.
// Both are zero if the timer was never started.
func (t *StageTimer) GetTiming() (time.Duration, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.startTime.IsZero() {
		return 0, 0
	}

	end := t.now()
	if t.stopped {
		end = t.stopTime
	}

	return end.Sub(t.startTime), end.Sub(t.stageStart)
}

// Stop freezes the timer at the current instant.
func (t *StageTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTime = t.now()
	t.stopped = true
}
