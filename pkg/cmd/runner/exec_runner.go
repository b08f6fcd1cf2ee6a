package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ProcessRunner runs an external binary as a child process.
type ProcessRunner interface {
	Exec(ctx context.Context, binary string, args []string, env ...string) (CommandResult, error)
}

// ExecRunner is the os/exec backed ProcessRunner.
type ExecRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// NewExecRunner returns a runner that mirrors child output to stdout and stderr.
// Nil writers discard the live output; the result still captures it.
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	if stdout == nil {
		stdout = io.Discard
	}

	if stderr == nil {
		stderr = io.Discard
	}

	return &ExecRunner{stdout: stdout, stderr: stderr}
}

// Exec runs binary with args. Extra env entries (KEY=VALUE) are appended to the
// current process environment. A non-zero exit includes the trimmed stderr in the error.
func (r *ExecRunner) Exec(
	ctx context.Context,
	binary string,
	args []string,
	env ...string,
) (CommandResult, error) {
	var outBuf, errBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = io.MultiWriter(&outBuf, r.stdout)
	cmd.Stderr = io.MultiWriter(&errBuf, r.stderr)

	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	runErr := cmd.Run()
	result := CommandResult{Stdout: outBuf.String(), Stderr: errBuf.String()}

	if runErr != nil {
		detail := strings.TrimSpace(result.Stderr)
		if detail != "" {
			return result, fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), runErr, detail)
		}

		return result, fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), runErr)
	}

	return result, nil
}
