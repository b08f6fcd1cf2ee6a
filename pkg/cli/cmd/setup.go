package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/devantler-tech/standalone/pkg/cli/setup"
	"github.com/devantler-tech/standalone/pkg/di"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
	"github.com/devantler-tech/standalone/pkg/utils/timer"
	"github.com/spf13/cobra"
)

type setupOptions struct {
	dryRun bool
}

func addSetupFlags(cmd *cobra.Command, opts *setupOptions) {
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the ordered steps without executing them")
}

// NewSetupCmd creates the setup command.
func NewSetupCmd(runtimeContainer *di.Runtime) *cobra.Command {
	opts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create or converge the local cluster",
		Long: "Tunes host limits, downloads the tools, issues certificates, creates the k3d cluster,\n" +
			"deploys cert-manager, Argo CD and a test workload, and prints a summary.\n\n" +
			"Every step checks for existing state first, so setup can be re-run at any time.",
		Args:         cobra.NoArgs,
		RunE:         runSetup(runtimeContainer, opts),
		SilenceUsage: true,
	}

	addSetupFlags(cmd, opts)

	return cmd
}

func runSetup(runtimeContainer *di.Runtime, opts *setupOptions) func(*cobra.Command, []string) error {
	return runWithConfig(runtimeContainer, di.WithTimer(
		func(cmd *cobra.Command, injector di.Injector, tmr timer.Timer) error {
			cfg, err := di.ResolveConfig(injector)
			if err != nil {
				return err
			}

			out := outputWriter(cmd)

			if opts.dryRun {
				return printPlan(out, setup.Pipeline(setup.Dependencies{}))
			}

			api, err := requireDocker(cmd.Context(), injector)
			if err != nil {
				return err
			}

			processRunner, err := di.ResolveProcessRunner(injector)
			if err != nil {
				return err
			}

			provisioner, err := di.ResolveClusterProvisioner(injector)
			if err != nil {
				return err
			}

			deps := setup.DefaultDependencies(cfg, api, processRunner, provisioner, out)

			return runPipeline(cmd, out, tmr, setup.Pipeline(deps), setup.NewRunContext(cfg))
		},
	))
}

func printPlan(out io.Writer, p *pipeline.Pipeline) error {
	plan, err := p.Plan()
	if err != nil {
		return err
	}

	notify.Titlef(out, "🗺️", "Plan for %s (%d steps)", p.Name, len(plan))

	for _, entry := range plan {
		details := []string{"policy=" + entry.Policy.String()}

		if len(entry.DependsOn) > 0 {
			details = append(details, "after="+strings.Join(entry.DependsOn, ","))
		}

		if entry.Gate != "" {
			details = append(details, "gate="+entry.Gate)
		}

		_, err = fmt.Fprintf(out, "%d. %-24s %s\n", entry.Index, entry.Name, strings.Join(details, " "))
		if err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
	}

	return nil
}
