package docker

import (
	"bytes"
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/mock"
)

// MockContainerAPI is a mock implementation of ContainerAPI for testing.
type MockContainerAPI struct {
	mock.Mock
}

// NewMockContainerAPI creates a new MockContainerAPI instance.
func NewMockContainerAPI() *MockContainerAPI {
	return &MockContainerAPI{}
}

// Ping mocks pinging the engine.
func (m *MockContainerAPI) Ping(ctx context.Context) (types.Ping, error) {
	args := m.Called(ctx)

	ping, _ := args.Get(0).(types.Ping)

	return ping, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ImageInspect mocks inspecting a local image.
func (m *MockContainerAPI) ImageInspect(
	ctx context.Context,
	imageID string,
	_ ...client.ImageInspectOption,
) (image.InspectResponse, error) {
	args := m.Called(ctx, imageID)

	resp, _ := args.Get(0).(image.InspectResponse)

	return resp, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ImagePull mocks pulling an image.
func (m *MockContainerAPI) ImagePull(
	ctx context.Context,
	ref string,
	options image.PullOptions,
) (io.ReadCloser, error) {
	args := m.Called(ctx, ref, options)

	reader, _ := args.Get(0).(io.ReadCloser)

	return reader, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerCreate mocks creating a container.
func (m *MockContainerAPI) ContainerCreate(
	ctx context.Context,
	config *container.Config,
	hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig,
	platform *ocispec.Platform,
	containerName string,
) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)

	resp, _ := args.Get(0).(container.CreateResponse)

	return resp, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerStart mocks starting a container.
func (m *MockContainerAPI) ContainerStart(
	ctx context.Context,
	containerID string,
	options container.StartOptions,
) error {
	args := m.Called(ctx, containerID, options)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerWait mocks waiting for a container.
func (m *MockContainerAPI) ContainerWait(
	ctx context.Context,
	containerID string,
	condition container.WaitCondition,
) (<-chan container.WaitResponse, <-chan error) {
	args := m.Called(ctx, containerID, condition)

	statusCh, _ := args.Get(0).(chan container.WaitResponse)
	errCh, _ := args.Get(1).(chan error)

	return statusCh, errCh
}

// ContainerLogs mocks reading container logs.
func (m *MockContainerAPI) ContainerLogs(
	ctx context.Context,
	containerID string,
	options container.LogsOptions,
) (io.ReadCloser, error) {
	args := m.Called(ctx, containerID, options)

	reader, _ := args.Get(0).(io.ReadCloser)

	return reader, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerRemove mocks removing a container.
func (m *MockContainerAPI) ContainerRemove(
	ctx context.Context,
	containerID string,
	options container.RemoveOptions,
) error {
	args := m.Called(ctx, containerID, options)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerList mocks listing containers.
func (m *MockContainerAPI) ContainerList(
	ctx context.Context,
	options container.ListOptions,
) ([]container.Summary, error) {
	args := m.Called(ctx, options)

	summaries, _ := args.Get(0).([]container.Summary)

	return summaries, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ExpectRun registers the calls RunOnce makes for a container whose command
// satisfies match. The image is reported as already present.
func (m *MockContainerAPI) ExpectRun(
	match func(cmd []string) bool,
	containerID, stdout, stderr string,
	statusCode int64,
) {
	m.On("ImageInspect", mock.Anything, mock.Anything).
		Return(image.InspectResponse{}, nil).Maybe()
	m.On("ContainerCreate", mock.Anything,
		mock.MatchedBy(func(cfg *container.Config) bool { return match(cfg.Cmd) }),
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(container.CreateResponse{ID: containerID}, nil).Once()
	m.On("ContainerStart", mock.Anything, containerID, mock.Anything).Return(nil).Once()

	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: statusCode}

	m.On("ContainerWait", mock.Anything, containerID, container.WaitConditionNotRunning).
		Return(statusCh, make(chan error)).Once()
	m.On("ContainerLogs", mock.Anything, containerID, mock.Anything).
		Return(MultiplexedLogs(stdout, stderr), nil).Once()
	m.On("ContainerRemove", mock.Anything, containerID, mock.Anything).Return(nil).Once()
}

// MultiplexedLogs encodes stdout and stderr the way the engine streams non-TTY logs.
func MultiplexedLogs(stdout, stderr string) io.ReadCloser {
	var buf bytes.Buffer

	if stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout))
	}

	if stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr))
	}

	return io.NopCloser(&buf)
}
