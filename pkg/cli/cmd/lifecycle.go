package cmd

import (
	"github.com/devantler-tech/standalone/pkg/cli/lifecycle"
	"github.com/devantler-tech/standalone/pkg/cli/setup"
	"github.com/devantler-tech/standalone/pkg/di"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/utils/timer"
	"github.com/spf13/cobra"
)

// NewCleanupCmd creates the cleanup command.
func NewCleanupCmd(runtimeContainer *di.Runtime) *cobra.Command {
	return newClusterCmd(runtimeContainer, &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the local cluster",
		Long: "Deletes the k3d cluster and its registry. Tools, certificates and the data\n" +
			"directory stay on disk. Cleaning up an absent cluster succeeds.",
	}, lifecycle.CleanupPipeline)
}

// NewStartCmd creates the start command.
func NewStartCmd(runtimeContainer *di.Runtime) *cobra.Command {
	return newClusterCmd(runtimeContainer, &cobra.Command{
		Use:   "start",
		Short: "Start a stopped cluster",
	}, lifecycle.StartPipeline)
}

// NewStopCmd creates the stop command.
func NewStopCmd(runtimeContainer *di.Runtime) *cobra.Command {
	return newClusterCmd(runtimeContainer, &cobra.Command{
		Use:   "stop",
		Short: "Stop a running cluster without deleting it",
	}, lifecycle.StopPipeline)
}

func newClusterCmd(
	runtimeContainer *di.Runtime,
	cmd *cobra.Command,
	build func(lifecycle.ClusterController) *pipeline.Pipeline,
) *cobra.Command {
	cmd.Args = cobra.NoArgs
	cmd.SilenceUsage = true
	cmd.RunE = runWithConfig(runtimeContainer, di.WithTimer(
		func(cmd *cobra.Command, injector di.Injector, tmr timer.Timer) error {
			cfg, err := di.ResolveConfig(injector)
			if err != nil {
				return err
			}

			_, err = requireDocker(cmd.Context(), injector)
			if err != nil {
				return err
			}

			provisioner, err := di.ResolveClusterProvisioner(injector)
			if err != nil {
				return err
			}

			return runPipeline(cmd, outputWriter(cmd), tmr, build(provisioner), setup.NewRunContext(cfg))
		},
	))

	return cmd
}
