package di

import (
	"fmt"

	"github.com/devantler-tech/standalone/pkg/client/docker"
	"github.com/devantler-tech/standalone/pkg/cmd/runner"
	"github.com/devantler-tech/standalone/pkg/config"
	k3dprovisioner "github.com/devantler-tech/standalone/pkg/svc/provisioner/cluster/k3d"
	"github.com/devantler-tech/standalone/pkg/utils/timer"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

// Dependency resolvers.

func resolve[T any](injector Injector, name string) (T, error) {
	value, err := do.Invoke[T](injector)
	if err != nil {
		var zero T

		return zero, fmt.Errorf("resolve %s dependency: %w", name, err)
	}

	return value, nil
}

// ResolveTimer retrieves the timer dependency.
func ResolveTimer(injector Injector) (timer.Timer, error) {
	return resolve[timer.Timer](injector, "timer")
}

// ResolveConfig retrieves the configuration registered with ConfigModule.
func ResolveConfig(injector Injector) (*config.Config, error) {
	return resolve[*config.Config](injector, "config")
}

// ResolveProcessRunner retrieves the child process runner.
func ResolveProcessRunner(injector Injector) (runner.ProcessRunner, error) {
	return resolve[runner.ProcessRunner](injector, "process runner")
}

// ResolveDockerClient retrieves the Docker Engine client.
func ResolveDockerClient(injector Injector) (docker.ContainerAPI, error) {
	return resolve[docker.ContainerAPI](injector, "docker client")
}

// ResolveClusterProvisioner retrieves the k3d cluster provisioner.
func ResolveClusterProvisioner(injector Injector) (*k3dprovisioner.Provisioner, error) {
	return resolve[*k3dprovisioner.Provisioner](injector, "cluster provisioner")
}

// Handler decorators.

// WithTimer decorates a handler to automatically resolve the timer dependency.
func WithTimer(
	handler func(cmd *cobra.Command, injector Injector, tmr timer.Timer) error,
) func(cmd *cobra.Command, injector Injector) error {
	return func(cmd *cobra.Command, injector Injector) error {
		tmr, err := ResolveTimer(injector)
		if err != nil {
			return err
		}

		return handler(cmd, injector, tmr)
	}
}
