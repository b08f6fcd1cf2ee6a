// Package docker wraps the Docker Engine API calls the provisioner makes directly:
// the prerequisite ping, one-shot privileged containers, and container port lookups.
package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ContainerAPI is the subset of client.APIClient used by this repository.
type ContainerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageInspect(
		ctx context.Context,
		imageID string,
		opts ...client.ImageInspectOption,
	) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(
		ctx context.Context,
		config *container.Config,
		hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig,
		platform *ocispec.Platform,
		containerName string,
	) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(
		ctx context.Context,
		containerID string,
		condition container.WaitCondition,
	) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

var _ ContainerAPI = (*client.Client)(nil)

// GetDockerClient creates a Docker client from the environment (DOCKER_HOST and friends).
func GetDockerClient() (*client.Client, error) {
	dockerClient, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return dockerClient, nil
}

// CheckAvailable pings the engine and reports a PrerequisiteError when it is unreachable.
func CheckAvailable(ctx context.Context, api ContainerAPI) error {
	_, err := api.Ping(ctx)
	if err != nil {
		return &provisionerr.PrerequisiteError{What: "container runtime (docker)", Err: err}
	}

	return nil
}
