// Package runner executes external tools, either as in-process Cobra commands
// or as child processes, while echoing and capturing their output.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// CommandResult holds everything a command wrote, including output produced before a failure.
type CommandResult struct {
	Stdout string
	Stderr string
}

// CommandRunner executes Cobra commands while capturing their output.
type CommandRunner interface {
	Run(ctx context.Context, cmd *cobra.Command, args []string) (CommandResult, error)
}

// CobraCommandRunner runs a Cobra command in-process, mirroring its output to the
// configured writers and into the returned CommandResult.
type CobraCommandRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// NewCobraCommandRunner returns a runner writing to stdout and stderr.
// Nil writers default to os.Stdout and os.Stderr.
func NewCobraCommandRunner(stdout, stderr io.Writer) *CobraCommandRunner {
	if stdout == nil {
		stdout = os.Stdout
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	return &CobraCommandRunner{stdout: stdout, stderr: stderr}
}

// Run executes cmd with args under ctx. Usage and error printing are silenced;
// the error is returned instead.
func (r *CobraCommandRunner) Run(
	ctx context.Context,
	cmd *cobra.Command,
	args []string,
) (CommandResult, error) {
	var outBuf, errBuf bytes.Buffer

	cmd.SetOut(io.MultiWriter(&outBuf, r.stdout))
	cmd.SetErr(io.MultiWriter(&errBuf, r.stderr))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	execErr := cmd.ExecuteContext(ctx)
	result := CommandResult{Stdout: outBuf.String(), Stderr: errBuf.String()}

	if execErr != nil {
		return result, fmt.Errorf("command execution failed: %w", execErr)
	}

	return result, nil
}
