package cmd

import (
	"context"
	"io"

	"github.com/devantler-tech/standalone/pkg/cli/flags"
	"github.com/devantler-tech/standalone/pkg/client/docker"
	"github.com/devantler-tech/standalone/pkg/config"
	"github.com/devantler-tech/standalone/pkg/di"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
	"github.com/devantler-tech/standalone/pkg/utils/timer"
	"github.com/spf13/cobra"
)

// runWithConfig loads the configuration from the command's flags and the
// environment, then runs handler with the configuration registered in the injector.
func runWithConfig(
	runtimeContainer *di.Runtime,
	handler func(cmd *cobra.Command, injector di.Injector) error,
) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}

		return runtimeContainer.Invoke(func(injector di.Injector) error {
			return handler(cmd, injector)
		}, di.ConfigModule(cfg))
	}
}

// requireDocker resolves the Docker client and pings it once before any step runs.
func requireDocker(ctx context.Context, injector di.Injector) (docker.ContainerAPI, error) {
	api, err := di.ResolveDockerClient(injector)
	if err != nil {
		return nil, &provisionerr.PrerequisiteError{What: "container runtime (docker)", Err: err}
	}

	err = docker.CheckAvailable(ctx, api)
	if err != nil {
		return nil, err
	}

	return api, nil
}

func outputWriter(cmd *cobra.Command) io.Writer {
	return notify.NewStageSeparatingWriter(cmd.OutOrStdout())
}

// runPipeline executes p with the command's timing preference.
func runPipeline(
	cmd *cobra.Command,
	out io.Writer,
	tmr timer.Timer,
	p *pipeline.Pipeline,
	rc *pipeline.RunContext,
) error {
	timing, _ := flags.IsTimingEnabled(cmd)

	runner := pipeline.NewRunner(
		pipeline.WithOutput(out),
		pipeline.WithTimer(tmr),
		pipeline.WithTiming(timing),
	)

	_, err := runner.Run(cmd.Context(), p, rc)
	if err != nil {
		return err
	}

	return nil
}
