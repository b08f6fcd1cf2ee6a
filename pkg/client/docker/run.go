package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"
)

// ErrNonZeroExit is returned when a one-shot container exits with a non-zero status.
var ErrNonZeroExit = errors.New("container exited with non-zero status")

// RunSpec describes a short-lived container.
type RunSpec struct {
	Image      string
	Cmd        []string
	Privileged bool
	// Name is optional; Docker generates one when empty.
	Name string
}

// EnsureImage pulls ref unless it is already present locally.
func EnsureImage(ctx context.Context, api ContainerAPI, ref string) error {
	_, err := api.ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}

	if !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image %s: %w", ref, err)
	}

	reader, err := api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}

	_, err = io.Copy(io.Discard, reader)
	closeErr := reader.Close()

	if err != nil {
		return fmt.Errorf("read pull output for %s: %w", ref, err)
	}

	if closeErr != nil {
		return fmt.Errorf("close pull output for %s: %w", ref, closeErr)
	}

	return nil
}

// RunOnce runs spec to completion and returns its stdout. The container is always removed.
func RunOnce(ctx context.Context, api ContainerAPI, spec RunSpec) (string, error) {
	err := EnsureImage(ctx, api, spec.Image)
	if err != nil {
		return "", err
	}

	created, err := api.ContainerCreate(
		ctx,
		&container.Config{Image: spec.Image, Cmd: spec.Cmd},
		&container.HostConfig{Privileged: spec.Privileged},
		nil,
		nil,
		spec.Name,
	)
	if err != nil {
		return "", fmt.Errorf("create container from %s: %w", spec.Image, err)
	}

	defer func() {
		_ = api.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
	}()

	err = api.ContainerStart(ctx, created.ID, container.StartOptions{})
	if err != nil {
		return "", fmt.Errorf("start container %s: %w", created.ID, err)
	}

	statusCode, err := waitForExit(ctx, api, created.ID)
	if err != nil {
		return "", err
	}

	stdout, stderr, err := collectLogs(ctx, api, created.ID)
	if err != nil {
		return "", err
	}

	if statusCode != 0 {
		return stdout, fmt.Errorf("%w: %d: %s", ErrNonZeroExit, statusCode, strings.TrimSpace(stderr))
	}

	return stdout, nil
}

func waitForExit(ctx context.Context, api ContainerAPI, id string) (int64, error) {
	statusCh, errCh := api.ContainerWait(ctx, id, container.WaitConditionNotRunning)

	select {
	case err := <-errCh:
		return 0, fmt.Errorf("wait for container %s: %w", id, err)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return 0, fmt.Errorf("wait for container %s: %s", id, status.Error.Message) //nolint:err113 // daemon-provided message
		}

		return status.StatusCode, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("wait for container %s: %w", id, ctx.Err())
	}
}

func collectLogs(ctx context.Context, api ContainerAPI, id string) (string, string, error) {
	logs, err := api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", fmt.Errorf("read logs of container %s: %w", id, err)
	}

	defer func() { _ = logs.Close() }()

	var stdout, stderr bytes.Buffer

	_, err = stdcopy.StdCopy(&stdout, &stderr, logs)
	if err != nil {
		return "", "", fmt.Errorf("demultiplex logs of container %s: %w", id, err)
	}

	return stdout.String(), stderr.String(), nil
}
