package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	infraredis "github.com/jonesrussell/north-cloud/cadence/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/cadence/internal/config"
	"github.com/jonesrussell/north-cloud/cadence/internal/database"
)

// Repositories groups the Postgres repositories.
type Repositories struct {
	Agencies  *database.AgencyRepository
	Feeds     *database.FeedRepository
	Runs      *database.ParseRunRepository
	Documents *database.DocumentRepository
	Health    *database.HealthRepository
}

// SetupDatabase connects to Postgres, applies the schema when enabled and
// builds the repositories.
func SetupDatabase(cfg *config.Config, log infralogger.Logger) (*sqlx.DB, *Repositories, error) {
	if cfg.Service.Migrate {
		if migrateErr := database.Migrate(cfg.Database, log); migrateErr != nil {
			return nil, nil, fmt.Errorf("migrate: %w", migrateErr)
		}
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	log.Info("Database connection established",
		infralogger.String("host", cfg.Database.Host),
		infralogger.String("database", cfg.Database.Database),
	)

	return db, &Repositories{
		Agencies:  database.NewAgencyRepository(db),
		Feeds:     database.NewFeedRepository(db),
		Runs:      database.NewParseRunRepository(db),
		Documents: database.NewDocumentRepository(db),
		Health:    database.NewHealthRepository(db),
	}, nil
}

// SetupRedis creates the Redis client without requiring it to be up. The dedup
// gate and the rate limiter fall back to process memory when it is not.
func SetupRedis(cfg *config.Config, log infralogger.Logger) (*redis.Client, error) {
	rcfg := cfg.Redis
	rcfg.SkipPingOnNew = true

	client, err := infraredis.NewClient(rcfg)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		log.Warn("Redis unreachable at startup, continuing degraded",
			infralogger.String("address", cfg.Redis.Address),
			infralogger.Error(pingErr),
		)
	}
	return client, nil
}
