package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/cadence/internal/config"
	"github.com/jonesrussell/north-cloud/cadence/internal/database"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadForMigrate()
			if err != nil {
				return err
			}
			if migrateErr := database.Migrate(cfg.Database, log); migrateErr != nil {
				return migrateErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadForMigrate()
			if err != nil {
				return err
			}
			return database.MigrateDown(cfg.Database, steps, log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			v, dirty, err := database.MigrationVersion(cfg.Database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}

	migrateCmd.AddCommand(down, version)
	return migrateCmd
}

func loadForMigrate() (*config.Config, infralogger.Logger, error) {
	cfg, err := bootstrap.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
