package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunSafely(t *testing.T) {
	t.Parallel()

	var errOut bytes.Buffer

	code := runSafely(nil, func([]string) int { return 0 }, &errOut)
	assert.Equal(t, 0, code)
	assert.Empty(t, errOut.String())

	code = runSafely(nil, func([]string) int { panic("kaboom") }, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "panic recovered: kaboom")
}

func TestRunWithArgs_UnknownSubcommand(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, runWithArgs([]string{"bogus"}))
}
