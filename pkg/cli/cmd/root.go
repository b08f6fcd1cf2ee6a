package cmd

import (
	"fmt"

	"github.com/devantler-tech/standalone/pkg/cli/flags"
	"github.com/devantler-tech/standalone/pkg/cli/ui/errorhandler"
	"github.com/devantler-tech/standalone/pkg/config"
	"github.com/devantler-tech/standalone/pkg/di"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Without a subcommand it runs setup.
func NewRootCmd(version, commit, date string) *cobra.Command {
	return newRootCmd(di.NewRuntime(), version, commit, date)
}

func newRootCmd(runtimeContainer *di.Runtime, version, commit, date string) *cobra.Command {
	setupOpts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "standalone",
		Short: "Provision a local k3d cluster with TLS ingress, cert-manager and Argo CD",
		Long: "standalone takes a machine with only a container runtime to a running k3d cluster\n" +
			"with locally trusted TLS, cert-manager, Argo CD and a test workload.\n\n" +
			"Running it without a subcommand is the same as running setup.",
		RunE:         runSetup(runtimeContainer, setupOpts),
		SilenceUsage: true,
	}

	cmd.Version = fmt.Sprintf("%s (Built on %s from Git SHA %s)", version, date, commit)

	cmd.PersistentFlags().Bool(flags.TimingFlagName, false, "Show per-step timing output")
	config.AddFlags(cmd.PersistentFlags())
	addSetupFlags(cmd, setupOpts)

	cmd.AddCommand(
		NewSetupCmd(runtimeContainer),
		NewCleanupCmd(runtimeContainer),
		NewToolsCmd(runtimeContainer),
		NewStartCmd(runtimeContainer),
		NewStopCmd(runtimeContainer),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the provided root command and handles errors.
func Execute(cmd *cobra.Command) error {
	executor := errorhandler.NewExecutor()

	err := executor.Execute(cmd)
	if err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}

	return nil
}
