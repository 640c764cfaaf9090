package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	infraconfig "github.com/jonesrussell/north-cloud/cadence/infrastructure/config"
	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// openMigrator uses its own connection: closing the migrate instance closes
// the underlying *sql.DB.
func openMigrator(cfg infraconfig.DatabaseConfig) (*migrate.Migrate, error) {
	cfg.SetDefaults()

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}

// Migrate applies all pending migrations.
func Migrate(cfg infraconfig.DatabaseConfig, log infralogger.Logger) error {
	m, err := openMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if upErr := m.Up(); upErr != nil {
		if errors.Is(upErr, migrate.ErrNoChange) {
			log.Info("No pending migrations")
			return nil
		}
		return fmt.Errorf("run migrations: %w", upErr)
	}

	log.Info("Migrations applied successfully")
	return nil
}

// MigrateDown rolls back steps migrations, one when steps is not positive.
func MigrateDown(cfg infraconfig.DatabaseConfig, steps int, log infralogger.Logger) error {
	m, err := openMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if steps <= 0 {
		steps = 1
	}

	if downErr := m.Steps(-steps); downErr != nil {
		if errors.Is(downErr, migrate.ErrNoChange) {
			log.Info("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", downErr)
	}

	log.Info("Migrations rolled back", infralogger.Int("steps", steps))
	return nil
}

// MigrationVersion returns the applied version and whether it is dirty.
// A database with no migrations reports version 0.
func MigrationVersion(cfg infraconfig.DatabaseConfig) (uint, bool, error) {
	m, err := openMigrator(cfg)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}
