package cli

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/shotdiff/internal/runner"
	"github.com/GriffinCanCode/shotdiff/internal/suite"
)

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id>...",
		Short: "Compare existing captures against their baselines",
		Long: `Compares each screenshot id, a path relative to both the baseline and the
actual directory, without launching a browser.

Exit status is 0 when every screenshot passes, 1 when any differs or lacks a
baseline, and 2 when a capture is missing or the filesystem fails.`,
		Example: `  shotdiff compare home.png settings/profile.png
  shotdiff compare --update-snapshots home.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.runner(runner.Options{})
			report, err := r.Run(cmd.Context(), suite.FromIDs(args...))
			if err != nil {
				return usageError(err)
			}
			printReport(cmd.OutOrStdout(), report)
			return reportExit(report)
		},
	}
}
