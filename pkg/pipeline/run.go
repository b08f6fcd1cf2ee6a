package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/devantler-tech/standalone/pkg/k8s/readiness"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
	"github.com/devantler-tech/standalone/pkg/utils/timer"
)

// Outcome is what happened to a step during a run.
type Outcome int

// Step outcomes.
const (
	OutcomeNotRun Outcome = iota
	OutcomeApplied
	OutcomeAdopted
	OutcomeWarned
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAdopted:
		return "adopted"
	case OutcomeWarned:
		return "warned"
	case OutcomeFailed:
		return "failed"
	default:
		return "not run"
	}
}

// StepResult records the outcome of one step.
type StepResult struct {
	Name     string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Report lists the results of a run in step order, including steps that never ran.
type Report struct {
	Results []StepResult
}

// Outcome returns the outcome of the named step.
func (r Report) Outcome(name string) Outcome {
	for _, result := range r.Results {
		if result.Name == name {
			return result.Outcome
		}
	}

	return OutcomeNotRun
}

// Runner executes pipelines.
type Runner struct {
	out        io.Writer
	timer      timer.Timer
	showTiming bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithOutput sets where step progress is written.
func WithOutput(out io.Writer) RunnerOption {
	return func(r *Runner) { r.out = out }
}

// WithTimer sets the timer used for per-step and total durations.
func WithTimer(tmr timer.Timer) RunnerOption {
	return func(r *Runner) { r.timer = tmr }
}

// WithTiming prints step and total durations after each successful step.
func WithTiming(show bool) RunnerOption {
	return func(r *Runner) { r.showTiming = show }
}

// NewRunner returns a Runner writing to os.Stdout by default.
func NewRunner(opts ...RunnerOption) *Runner {
	runner := &Runner{out: os.Stdout}
	for _, opt := range opts {
		opt(runner)
	}

	if runner.timer == nil {
		runner.timer = timer.New()
	}

	return runner
}

// Run validates p and executes its steps in order against rc. The first fatal
// failure stops the run and is returned as a *StepError.
func (r *Runner) Run(ctx context.Context, p *Pipeline, rc *RunContext) (Report, error) {
	report := Report{Results: make([]StepResult, len(p.Steps))}
	for index, step := range p.Steps {
		report.Results[index] = StepResult{Name: step.Name}
	}

	err := p.Validate()
	if err != nil {
		return report, err
	}

	r.timer.Start()

	for index, step := range p.Steps {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return report, fmt.Errorf("pipeline %s cancelled before %s: %w", p.Name, step.Name, ctxErr)
		}

		r.timer.NewStage()
		notify.StepTitlef(r.out, step.Emoji, index+1, len(p.Steps), "%s", step.title())

		started := time.Now()
		outcome, stepErr := r.runStep(ctx, step, rc)

		result := &report.Results[index]
		result.Duration = time.Since(started)
		result.Outcome = outcome
		result.Err = stepErr

		if stepErr == nil {
			r.reportSuccess(step, outcome)

			continue
		}

		if step.Policy == PolicyWarn {
			result.Outcome = OutcomeWarned
			notify.Warningf(r.out, "%s failed, continuing: %v", step.Name, stepErr)

			continue
		}

		result.Outcome = OutcomeFailed

		return report, &StepError{Step: step.Name, Err: stepErr}
	}

	r.timer.Stop()

	return report, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, rc *RunContext) (Outcome, error) {
	outcome := OutcomeApplied

	satisfied := false

	if step.Check != nil {
		var err error

		satisfied, err = step.Check(ctx, rc)
		if err != nil {
			return OutcomeNotRun, fmt.Errorf("check: %w", err)
		}
	}

	if satisfied {
		outcome = OutcomeAdopted

		if step.Adopt != nil {
			err := step.Adopt(ctx, rc)
			if err != nil {
				return outcome, fmt.Errorf("adopt: %w", err)
			}
		}
	} else {
		err := step.Action(ctx, rc)
		if err != nil {
			return outcome, err
		}
	}

	if step.Gate != nil {
		gate := step.Gate

		notify.Activityf(r.out, "waiting for %s", gate.Condition)

		err := readiness.Wait(ctx, gate.Condition, gate.Timeout, gate.Interval, func(ctx context.Context) (bool, error) {
			return gate.Ready(ctx, rc)
		})
		if err != nil && gate.Wrap != nil {
			return outcome, gate.Wrap(rc, err)
		}

		if err != nil {
			return outcome, err
		}
	}

	return outcome, nil
}

func (r *Runner) reportSuccess(step Step, outcome Outcome) {
	if outcome == OutcomeAdopted {
		notify.Skippedf(r.out, "%s already satisfied", step.Name)

		return
	}

	if r.showTiming {
		notify.SuccessWithTimerf(r.out, r.timer, "%s done", step.Name)

		return
	}

	notify.Successf(r.out, "%s done", step.Name)
}
