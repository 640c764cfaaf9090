package bootstrap

import (
	"fmt"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/config"
)

// LoadConfig loads and validates the configuration at path, or at
// CONFIG_PATH / config.yml when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.Path()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// CreateLogger creates the service logger.
func CreateLogger(cfg *config.Config) (infralogger.Logger, error) {
	log, err := infralogger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		infralogger.String("service", cfg.Service.Name),
		infralogger.String("version", cfg.Service.Version),
	), nil
}
