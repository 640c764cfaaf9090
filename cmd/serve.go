package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/cadence/internal/bootstrap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the persistence sink and the ops API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(app *bootstrap.App) error {
				return app.Serve(cmd.Context())
			})
		},
	}
}
