package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
)

func newScrapeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <agency-id>...",
		Short: "Scrape the given agencies now and flush their documents to Postgres",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *bootstrap.App) error {
				ctx := cmd.Context()
				summaries := make([]ingest.Summary, 0, len(args))
				var errs []error
				for _, id := range args {
					summary, err := scrapeOne(ctx, app, id)
					summaries = append(summaries, summary)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", id, err))
					}
				}

				flushErr := flush(cmd, app)
				renderSummaries(cmd.OutOrStdout(), summaries)
				return errors.Join(append(errs, flushErr)...)
			})
		},
	}
}

func scrapeOne(ctx context.Context, app *bootstrap.App, id string) (ingest.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, app.Config.Scheduler.AgencyTimeout)
	defer cancel()
	return app.Activity.ScrapeAgency(ctx, id)
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one scheduler pass over every due agency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(app *bootstrap.App) error {
				result, err := app.Scheduler.RunOnce(cmd.Context())
				flushErr := flush(cmd, app)

				renderSummaries(cmd.OutOrStdout(), result.Summaries)
				fmt.Fprintf(cmd.OutOrStdout(), "due=%d succeeded=%d dead_lettered=%d\n",
					result.Due, result.Succeeded, result.DeadLettered)
				return errors.Join(err, flushErr)
			})
		},
	}
}

func flush(cmd *cobra.Command, app *bootstrap.App) error {
	n, err := app.Sink.Flush(context.WithoutCancel(cmd.Context()))
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	app.Logger.Info("Documents inserted", infralogger.Int64("inserted", n))
	return nil
}
