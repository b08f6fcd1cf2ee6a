package di

import (
	"os"

	"github.com/devantler-tech/standalone/pkg/client/docker"
	"github.com/devantler-tech/standalone/pkg/cmd/runner"
	"github.com/devantler-tech/standalone/pkg/config"
	k3dprovisioner "github.com/devantler-tech/standalone/pkg/svc/provisioner/cluster/k3d"
	"github.com/devantler-tech/standalone/pkg/utils/timer"
	"github.com/samber/do/v2"
)

// Dependency providers.

// NewRuntime constructs the shared runtime container used by the root command.
func NewRuntime() *Runtime {
	return New(
		provideTimer,
		provideProcessRunner,
		provideDockerClient,
		provideClusterProvisioner,
	)
}

// ConfigModule registers an already loaded configuration.
func ConfigModule(cfg *config.Config) Module {
	return func(i Injector) error {
		do.ProvideValue(i, cfg)

		return nil
	}
}

func provideTimer(i Injector) error {
	do.Provide(i, func(Injector) (timer.Timer, error) {
		return timer.New(), nil
	})

	return nil
}

// provideProcessRunner mirrors child stderr so mkcert prompts stay visible.
func provideProcessRunner(i Injector) error {
	do.Provide(i, func(Injector) (runner.ProcessRunner, error) {
		return runner.NewExecRunner(nil, os.Stderr), nil
	})

	return nil
}

// provideDockerClient is lazy: the client is only built when a handler resolves it.
func provideDockerClient(i Injector) error {
	do.Provide(i, func(Injector) (docker.ContainerAPI, error) {
		return docker.GetDockerClient()
	})

	return nil
}

func provideClusterProvisioner(i Injector) error {
	do.Provide(i, func(Injector) (*k3dprovisioner.Provisioner, error) {
		return k3dprovisioner.NewProvisioner(os.Stdout), nil
	})

	return nil
}
