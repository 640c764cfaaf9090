package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/cadence/internal/bootstrap"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "List agencies with no recent run or only empty recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(app *bootstrap.App) error {
				rows, err := app.Repos.Health.Report(cmd.Context(), time.Now().UTC())
				if err != nil {
					return err
				}
				renderHealth(cmd.OutOrStdout(), rows)
				return nil
			})
		},
	}
}

func newDLQCommand() *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Show queue depth and the most recent dead-lettered agencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(app *bootstrap.App) error {
				ctx := cmd.Context()
				depth, err := app.Queue.Depth(ctx)
				if err != nil {
					return err
				}
				dlqDepth, err := app.Queue.DLQDepth(ctx)
				if err != nil {
					return err
				}
				entries, err := app.Queue.DeadLetters(ctx, limit)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "queue=%d dlq=%d\n", depth, dlqDepth)
				renderDeadLetters(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "dead letters to show")
	return cmd
}
