// Package database provides PostgreSQL access for the agency registry,
// parse-run history and canonical documents.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	infraconfig "github.com/jonesrussell/north-cloud/cadence/infrastructure/config"
)

// DefaultPingTimeout bounds the connection check in NewPostgresConnection.
const DefaultPingTimeout = 5 * time.Second

// NewPostgresConnection opens a pooled connection and verifies it with a ping.
func NewPostgresConnection(cfg infraconfig.DatabaseConfig) (*sqlx.DB, error) {
	cfg.SetDefaults()

	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}
