package parallel_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devantler-tech/standalone/pkg/cmd/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownload = errors.New("download failed")

func TestDefaultMaxConcurrency(t *testing.T) {
	t.Parallel()

	got := parallel.DefaultMaxConcurrency()
	assert.GreaterOrEqual(t, got, int64(2))
	assert.LessOrEqual(t, got, int64(8))
}

func TestExecutor_NoTasks(t *testing.T) {
	t.Parallel()

	require.NoError(t, parallel.NewExecutor(0).Execute(context.Background()))
}

func TestExecutor_RunsEveryTask(t *testing.T) {
	t.Parallel()

	var counter atomic.Int32

	tasks := make([]parallel.Task, 6)
	for i := range tasks {
		tasks[i] = func(context.Context) error {
			counter.Add(1)

			return nil
		}
	}

	require.NoError(t, parallel.NewExecutor(3).Execute(context.Background(), tasks...))
	assert.Equal(t, int32(6), counter.Load())
}

func TestExecutor_RespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32

	tasks := make([]parallel.Task, 8)
	for i := range tasks {
		tasks[i] = func(context.Context) error {
			current := running.Add(1)
			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)
			running.Add(-1)

			return nil
		}
	}

	require.NoError(t, parallel.NewExecutor(2).Execute(context.Background(), tasks...))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecutor_FirstErrorCancelsOthers(t *testing.T) {
	t.Parallel()

	cancelled := make(chan struct{})

	err := parallel.NewExecutor(2).Execute(context.Background(),
		func(context.Context) error { return errDownload },
		func(ctx context.Context) error {
			<-ctx.Done()
			close(cancelled)

			return ctx.Err()
		},
	)

	require.ErrorIs(t, err, errDownload)
	assert.Contains(t, err.Error(), "parallel execution")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("second task was not cancelled")
	}
}

func TestSyncWriter_KeepsLinesIntact(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	writer := parallel.NewSyncWriter(&buf)

	tasks := make([]parallel.Task, 4)
	for i := range tasks {
		tasks[i] = func(context.Context) error {
			_, err := fmt.Fprintf(writer, "line-%d\n", i)

			return err
		}
	}

	require.NoError(t, parallel.NewExecutor(4).Execute(context.Background(), tasks...))
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 4)
}

func TestResults_SetAndGet(t *testing.T) {
	t.Parallel()

	results := parallel.NewResults[string, bool]()

	tasks := []parallel.Task{
		func(context.Context) error {
			results.Set("k3d", true)

			return nil
		},
		func(context.Context) error {
			results.Set("helm", false)

			return nil
		},
	}

	require.NoError(t, parallel.NewExecutor(2).Execute(context.Background(), tasks...))

	got, ok := results.Get("k3d")
	assert.True(t, ok)
	assert.True(t, got)
	assert.Equal(t, 2, results.Len())

	_, ok = results.Get("kubectl")
	assert.False(t, ok)
}
