package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultInterval is the polling interval used when none is given.
const DefaultInterval = 2 * time.Second

// Check reports whether a condition holds. An error means "not yet" and is
// remembered as the reason if the wait eventually times out.
type Check func(ctx context.Context) (bool, error)

// Wait polls check every interval until it passes or timeout elapses. On timeout
// it returns a provisionerr.TimeoutError naming condition.
func Wait(ctx context.Context, condition string, timeout, interval time.Duration, check Check) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	err := poll(ctx, timeout, interval, check)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTimeoutExceeded) {
		return &provisionerr.TimeoutError{Condition: condition, Timeout: timeout, Err: errors.Unwrap(err)}
	}

	return fmt.Errorf("wait for %s: %w", condition, err)
}

type timeoutErr struct {
	last error
}

func (e *timeoutErr) Error() string {
	if e.last == nil {
		return ErrTimeoutExceeded.Error()
	}

	return fmt.Sprintf("%v: last error: %v", ErrTimeoutExceeded, e.last)
}

func (e *timeoutErr) Is(target error) bool { return target == ErrTimeoutExceeded }

func (e *timeoutErr) Unwrap() error { return e.last }

func poll(ctx context.Context, deadline, interval time.Duration, check Check) error {
	var lastErr error

	err := wait.PollUntilContextTimeout(ctx, interval, deadline, true, func(ctx context.Context) (bool, error) {
		ready, checkErr := check(ctx)
		if checkErr != nil {
			lastErr = checkErr

			return false, nil
		}

		return ready, nil
	})
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("polling cancelled: %w", ctx.Err())
	}

	if wait.Interrupted(err) {
		return &timeoutErr{last: lastErr}
	}

	return fmt.Errorf("poll: %w", err)
}
