// Package portalloc picks free host ports for the cluster's ingress entry point.
package portalloc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
)

const (
	// DefaultMaxAttempts bounds each scan sequence.
	DefaultMaxAttempts = 100

	maxPort     = 65535
	dialTimeout = 250 * time.Millisecond
)

// PortChecker reports whether a local TCP port has an active listener.
type PortChecker interface {
	InUse(ctx context.Context, port int) bool
}

// TCPChecker treats a port as in use when a local dial succeeds or a wildcard bind fails.
type TCPChecker struct{}

// InUse implements PortChecker.
func (TCPChecker) InUse(ctx context.Context, port int) bool {
	portStr := strconv.Itoa(port)
	dialer := net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", portStr))
	if err == nil {
		_ = conn.Close()

		return true
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", ":"+portStr)
	if err != nil {
		return true
	}

	_ = listener.Close()

	return false
}

// Allocator finds the lowest free port at or above a base value.
type Allocator struct {
	checker     PortChecker
	maxAttempts int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithChecker replaces the TCP checker.
func WithChecker(checker PortChecker) Option {
	return func(a *Allocator) { a.checker = checker }
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) { a.maxAttempts = n }
}

// New returns an Allocator.
func New(opts ...Option) *Allocator {
	alloc := &Allocator{checker: TCPChecker{}, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(alloc)
	}

	return alloc
}

// Allocate returns the lowest free port at or above baseHTTP and, separately,
// the lowest free port at or above baseHTTPS. The two sequences are scanned
// independently and may yield the same value when the bases overlap.
func (a *Allocator) Allocate(ctx context.Context, baseHTTP, baseHTTPS int) (int, int, error) {
	httpPort, err := a.Next(ctx, baseHTTP)
	if err != nil {
		return 0, 0, fmt.Errorf("allocate http port: %w", err)
	}

	httpsPort, err := a.Next(ctx, baseHTTPS)
	if err != nil {
		return 0, 0, fmt.Errorf("allocate https port: %w", err)
	}

	return httpPort, httpsPort, nil
}

// Next scans base, base+1, ... and returns the first port without a listener.
func (a *Allocator) Next(ctx context.Context, base int) (int, error) {
	if base < 1 || base > maxPort {
		return 0, fmt.Errorf("base port %d out of range 1-%d", base, maxPort)
	}

	attempts := 0

	for port := base; port <= maxPort && attempts < a.maxAttempts; port++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("check port %d: %w", port, err)
		}

		attempts++

		if !a.checker.InUse(ctx, port) {
			return port, nil
		}
	}

	return 0, &provisionerr.PortExhaustedError{Base: base, Attempts: attempts}
}
