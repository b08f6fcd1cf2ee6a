package k3dprovisioner

import (
	"testing"

	"github.com/devantler-tech/standalone/pkg/cmd/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRecoveringConvertsFatalExit(t *testing.T) {
	t.Parallel()

	_, err := runRecovering(func() (runner.CommandResult, error) {
		panic(fatalExit{code: 1})
	})

	require.ErrorIs(t, err, ErrFatalExit)
	assert.Contains(t, err.Error(), "exit code 1")
}

func TestRunRecoveringRepanicsForeignPanics(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = runRecovering(func() (runner.CommandResult, error) {
			panic("boom")
		})
	})
}

func TestRunRecoveringPassesResult(t *testing.T) {
	t.Parallel()

	res, err := runRecovering(func() (runner.CommandResult, error) {
		return runner.CommandResult{Stdout: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)
}
