// Package cmd implements the cadence command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/cadence/internal/bootstrap"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var cfgFile string

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cadence",
		Short:         "Scrapes California law-enforcement publications into Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $CONFIG_PATH or ./config.yml)")

	root.AddCommand(
		newServeCommand(),
		newScrapeCommand(),
		newScanCommand(),
		newHealthCommand(),
		newDLQCommand(),
		newMigrateCommand(),
		newCleanCommand(),
		newClassifyCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "cadence %s\n", version)
			},
		},
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// withApp wires the application, runs fn and releases it.
func withApp(fn func(*bootstrap.App) error) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}
