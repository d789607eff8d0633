package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Print the icon tasks derived from the dataset.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			tasks, excluded, err := appInstance.LoadTasks()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, task := range tasks {
				fmt.Fprintf(out, "%s\t%s\t%s\n", task.DomainKey, task.TargetFilename, task.SourceURL)
			}
			fmt.Fprintf(out, "%d tasks, %d excluded\n", len(tasks), len(excluded))
			return nil
		},
	}
}
