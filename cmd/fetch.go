package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFetchCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download every missing icon in the dataset.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			tasks, excluded, err := appInstance.LoadTasks()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Output: %s\n", appInstance.Location())
			fmt.Fprintf(out, "Found %d icon tasks (%d entries without an absolute URL)\n", len(tasks), len(excluded))
			if len(tasks) == 0 {
				fmt.Fprintln(out, "Nothing to download.")
				return nil
			}

			report, runErr := appInstance.RunBatch(cmd.Context(), tasks, newConsoleObserver(out))
			if report.Location == "" {
				report.Location = appInstance.Location()
			}
			printSummary(out, report)
			if runErr != nil {
				return runErr
			}
			if list {
				objects, err := appInstance.ListIcons(cmd.Context())
				if err != nil {
					return err
				}
				printListing(out, appInstance.Location(), objects)
			}
			appInstance.Logger().Info("Batch finished",
				zap.String("run_id", report.RunID),
				zap.Int("succeeded", report.Result.Succeeded),
				zap.Int("failed", report.Result.Failed),
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list stored icons after the run")
	return cmd
}

