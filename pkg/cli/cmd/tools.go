package cmd

import (
	"path/filepath"

	"github.com/devantler-tech/standalone/pkg/cli/setup"
	"github.com/devantler-tech/standalone/pkg/di"
	"github.com/devantler-tech/standalone/pkg/svc/acquirer"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
	"github.com/devantler-tech/standalone/pkg/utils/timer"
	"github.com/spf13/cobra"
)

// NewToolsCmd creates the tools command.
func NewToolsCmd(runtimeContainer *di.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Download k3d, kubectl, helm and mkcert into the tools directory",
		Long: "Downloads the pinned tool binaries into the tools directory. Binaries already\n" +
			"present are kept as they are; delete one to fetch it again.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: runWithConfig(runtimeContainer, di.WithTimer(
			func(cmd *cobra.Command, injector di.Injector, tmr timer.Timer) error {
				cfg, err := di.ResolveConfig(injector)
				if err != nil {
					return err
				}

				out := outputWriter(cmd)
				deps := setup.Dependencies{
					Out:      out,
					Acquirer: acquirer.New(acquirer.WithOutput(out)),
					Binaries: setup.NativeBinaries,
				}

				err = runPipeline(cmd, out, tmr, setup.ToolsPipeline(deps), setup.NewRunContext(cfg))
				if err != nil {
					return err
				}

				toolsDir, err := filepath.Abs(cfg.ToolsDir)
				if err != nil {
					toolsDir = cfg.ToolsDir
				}

				notify.Infof(out, "export PATH=\"%s:$PATH\"", toolsDir)

				return nil
			},
		)),
	}
}
