package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer history.Close()

			entries, err := history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.FinishedAt.Format("2006-01-02 15:04"),
					entry.Kind,
					fmt.Sprintf("%d", entry.Total),
					fmt.Sprintf("%d", entry.Successful),
					fmt.Sprintf("%d", entry.Failed),
					fmt.Sprintf("%d", entry.Skipped),
					entry.RunID,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Finished", "Kind", "Total", "OK", "Failed", "Skipped", "Run ID"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}
