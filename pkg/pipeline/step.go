package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Policy decides what a failing step does to the rest of the run.
type Policy int

const (
	// PolicyFatal aborts the run.
	PolicyFatal Policy = iota
	// PolicyWarn logs a warning and continues with the next step.
	PolicyWarn
)

func (p Policy) String() string {
	if p == PolicyWarn {
		return "warn"
	}

	return "fatal"
}

// Gate is a readiness condition polled after a step's action or adoption.
type Gate struct {
	// Condition names what is awaited; it appears in timeout errors.
	Condition string
	Timeout   time.Duration
	// Interval defaults to the readiness package's polling interval.
	Interval time.Duration
	Ready    func(ctx context.Context, rc *RunContext) (bool, error)
	// Wrap, when set, rewrites the error of a failed wait.
	Wrap func(rc *RunContext, err error) error
}

// Step is an immutable description of one provisioning operation.
type Step struct {
	Name  string
	Title string
	Emoji string

	Requires []Field
	Produces []Field

	// Check reports whether the desired state already exists. It must not change
	// external state. A nil Check always runs Action.
	Check func(ctx context.Context, rc *RunContext) (bool, error)
	// Adopt records existing state into the RunContext when Check is satisfied.
	Adopt func(ctx context.Context, rc *RunContext) error
	// Action brings the external state to the desired state.
	Action func(ctx context.Context, rc *RunContext) error

	Gate   *Gate
	Policy Policy
}

func (s Step) title() string {
	if s.Title != "" {
		return s.Title
	}

	return s.Name
}

// StepError names the step a fatal error came from.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
