package runner

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProcessRunner is a mock implementation of ProcessRunner for testing.
type MockProcessRunner struct {
	mock.Mock
}

// NewMockProcessRunner creates a new MockProcessRunner instance.
func NewMockProcessRunner() *MockProcessRunner {
	return &MockProcessRunner{}
}

// Exec mocks running a child process.
func (m *MockProcessRunner) Exec(
	ctx context.Context,
	binary string,
	args []string,
	env ...string,
) (CommandResult, error) {
	callArgs := m.Called(ctx, binary, args, env)

	result, _ := callArgs.Get(0).(CommandResult)

	return result, callArgs.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}
