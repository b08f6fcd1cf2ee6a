// Package errorhandler runs the root command, folds cobra's stderr output into the
// returned error and suggests a next action for the provisioning error classes.
package errorhandler

import (
	"bytes"
	"errors"
	"strings"

	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"github.com/spf13/cobra"
)

// Executor runs cobra commands and captures their error stream.
type Executor struct {
	normalizer DefaultNormalizer
}

// NewExecutor constructs an Executor.
func NewExecutor() *Executor {
	return &Executor{normalizer: DefaultNormalizer{}}
}

// Execute runs cmd. On failure it returns a *CommandError carrying the normalized
// stderr text and the original error chain.
func (e *Executor) Execute(cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	var errBuf bytes.Buffer

	originalErrWriter := cmd.ErrOrStderr()

	cmd.SetErr(&errBuf)
	defer cmd.SetErr(originalErrWriter)

	err := cmd.Execute()
	if err == nil {
		return nil
	}

	return &CommandError{
		message: e.normalizer.Normalize(errBuf.String()),
		cause:   err,
	}
}

// CommandError is a failed command with its normalized stderr output.
type CommandError struct {
	message string
	cause   error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return e.message
	case e.message != "":
		if strings.Contains(e.message, e.cause.Error()) {
			return e.message
		}

		return e.message + ": " + e.cause.Error()
	default:
		return e.cause.Error()
	}
}

// Unwrap exposes the underlying cause for errors.Is/errors.As consumers.
func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// DefaultNormalizer trims cobra's stderr output.
type DefaultNormalizer struct{}

// Normalize trims whitespace and the "Error:" prefix of the first line, keeping usage hints.
func (DefaultNormalizer) Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	lines[0] = strings.TrimPrefix(strings.TrimSpace(lines[0]), "Error: ")

	return strings.Join(lines, "\n")
}

// Hint suggests what to do about err, or returns "" when nothing specific applies.
func Hint(err error) string {
	var (
		prerequisite *provisionerr.PrerequisiteError
		ports        *provisionerr.PortExhaustedError
		timeout      *provisionerr.TimeoutError
		acquisition  *provisionerr.AcquisitionError
	)

	switch {
	case errors.As(err, &prerequisite):
		return "start the container runtime and run the command again"
	case errors.As(err, &ports):
		return "free a port in the range or choose another base with HTTP_PORT / HTTPS_PORT"
	case errors.As(err, &timeout):
		return "run setup again to continue where it stopped, or raise TIMEOUT"
	case errors.As(err, &acquisition):
		return "check network access to " + acquisition.URL + " or place the binary in the tools directory"
	case errors.Is(err, provisionerr.ErrClusterCreate):
		return "run cleanup to remove the partial cluster, then setup again"
	default:
		return ""
	}
}
