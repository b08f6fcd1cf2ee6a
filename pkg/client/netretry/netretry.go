// Package netretry retries operations that fail with transient network errors,
// such as binary downloads and Helm repository fetches.
package netretry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults used by Do when no options are given.
const (
	DefaultAttempts     = 4
	DefaultInitialDelay = 2 * time.Second
	DefaultMaxDelay     = 15 * time.Second
)

// httpStatusCodePattern matches 5xx codes at word boundaries so ":5000" is not a hit.
var httpStatusCodePattern = regexp.MustCompile(`\b50[0-4]\b`)

var transientPatterns = []string{
	"Internal Server Error", "Bad Gateway",
	"Service Unavailable", "Gateway Timeout",
	"connection reset by peer", "connection refused",
	"i/o timeout", "TLS handshake timeout",
	"unexpected EOF", "no such host",
	"Client.Timeout exceeded",
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable reports whether err looks like a transient network failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	errMsg := err.Error()

	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return httpStatusCodePattern.MatchString(errMsg)
}

type options struct {
	attempts     int
	initialDelay time.Duration
	maxDelay     time.Duration
	onRetry      func(attempt int, err error, wait time.Duration)
}

// Option configures Do.
type Option func(*options)

// WithAttempts sets the total number of attempts, including the first.
func WithAttempts(n int) Option {
	return func(o *options) { o.attempts = n }
}

// WithDelays sets the initial and maximum delay between attempts.
func WithDelays(initial, maximum time.Duration) Option {
	return func(o *options) {
		o.initialDelay = initial
		o.maxDelay = maximum
	}
}

// WithOnRetry registers a callback invoked before each retry.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do runs operation until it succeeds, fails with a non-retryable error,
// the attempts are exhausted, or ctx is done.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	cfg := options{
		attempts:     DefaultAttempts,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = cfg.initialDelay
	expo.MaxInterval = cfg.maxDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	retries := max(cfg.attempts-1, 0)
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(retries)), ctx)

	attempt := 0
	op := func() error {
		attempt++

		err := operation(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	notify := func(err error, wait time.Duration) {
		if cfg.onRetry != nil {
			cfg.onRetry(attempt, err, wait)
		}
	}

	err := backoff.RetryNotify(op, policy, notify)
	if err != nil {
		return fmt.Errorf("after %d attempt(s): %w", attempt, err)
	}

	return nil
}
