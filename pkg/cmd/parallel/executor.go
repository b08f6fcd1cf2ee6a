// Package parallel runs independent tasks, such as binary downloads, with bounded concurrency.
package parallel

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	minConcurrency = 2
	// maxConcurrencyCap keeps download fan-out polite towards release hosts.
	maxConcurrencyCap = 8
)

// DefaultMaxConcurrency returns the CPU count clamped to [2, 8].
func DefaultMaxConcurrency() int64 {
	return min(max(int64(runtime.NumCPU()), minConcurrency), maxConcurrencyCap)
}

// Task is a unit of work run by Executor.
type Task func(ctx context.Context) error

// Executor runs tasks concurrently behind a weighted semaphore.
type Executor struct {
	maxConcurrency int64
}

// NewExecutor returns an executor; maxConcurrency <= 0 selects DefaultMaxConcurrency.
func NewExecutor(maxConcurrency int64) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency()
	}

	return &Executor{maxConcurrency: maxConcurrency}
}

// Execute runs all tasks and returns the first error. The first failure cancels
// the context handed to the remaining tasks.
func (executor *Executor) Execute(ctx context.Context, tasks ...Task) error {
	switch len(tasks) {
	case 0:
		return nil
	case 1:
		return tasks[0](ctx)
	}

	sem := semaphore.NewWeighted(executor.maxConcurrency)
	group, groupCtx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		group.Go(func() error {
			err := sem.Acquire(groupCtx, 1)
			if err != nil {
				return fmt.Errorf("acquire semaphore: %w", err)
			}

			defer sem.Release(1)

			return task(groupCtx)
		})
	}

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("parallel execution: %w", err)
	}

	return nil
}

// SyncWriter serializes writes from concurrent tasks onto one writer.
type SyncWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewSyncWriter wraps writer.
func NewSyncWriter(writer io.Writer) *SyncWriter {
	return &SyncWriter{writer: writer}
}

// Write implements io.Writer.
func (syncWriter *SyncWriter) Write(data []byte) (int, error) {
	syncWriter.mu.Lock()
	defer syncWriter.mu.Unlock()

	n, err := syncWriter.writer.Write(data)
	if err != nil {
		return n, fmt.Errorf("sync write: %w", err)
	}

	return n, nil
}

// Results collects keyed values from concurrent tasks.
type Results[K comparable, V any] struct {
	mu     sync.Mutex
	values map[K]V
}

// NewResults returns an empty collector.
func NewResults[K comparable, V any]() *Results[K, V] {
	return &Results[K, V]{values: make(map[K]V)}
}

// Set records value under key.
func (results *Results[K, V]) Set(key K, value V) {
	results.mu.Lock()
	defer results.mu.Unlock()

	results.values[key] = value
}

// Get returns the value recorded under key.
func (results *Results[K, V]) Get(key K) (V, bool) {
	results.mu.Lock()
	defer results.mu.Unlock()

	value, ok := results.values[key]

	return value, ok
}

// Len returns the number of recorded values.
func (results *Results[K, V]) Len() int {
	results.mu.Lock()
	defer results.mu.Unlock()

	return len(results.values)
}
