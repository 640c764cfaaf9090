// Package config defines the cadence configuration file and its defaults.
package config

import (
	"time"

	infraconfig "github.com/jonesrussell/north-cloud/cadence/infrastructure/config"
	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/infrastructure/profiling"
	infraredis "github.com/jonesrussell/north-cloud/cadence/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/cadence/internal/fetcher"
	"github.com/jonesrussell/north-cloud/cadence/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/cadence/internal/scheduler"
	"github.com/jonesrussell/north-cloud/cadence/internal/worker"
)

// Default configuration values.
const (
	defaultServiceName    = "cadence"
	defaultServiceVersion = "1.0.0"
	defaultRedisAddress   = "localhost:6379"
	defaultRedisTimeout   = 3 * time.Second
	defaultConcurrency    = 4
	defaultAdmitGrace     = 30 * time.Second
	defaultConfigPath     = "config.yml"
)

// Config holds all configuration for cadence.
type Config struct {
	Service   ServiceConfig              `yaml:"service"`
	Database  infraconfig.DatabaseConfig `yaml:"database"`
	Redis     infraredis.Config          `yaml:"redis"`
	Logging   infralogger.Config         `yaml:"logging"`
	Server    infraconfig.ServerConfig   `yaml:"server"`
	Scheduler scheduler.Config           `yaml:"scheduler"`
	Sink      worker.SinkConfig          `yaml:"sink"`
	Fetch     fetcher.Config             `yaml:"fetch"`
	RateLimit ratelimit.Config           `yaml:"rate_limit"`
	Pipeline  PipelineConfig             `yaml:"pipeline"`
	Profiling profiling.Config           `yaml:"profiling"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Migrate applies the embedded schema on startup.
	Migrate bool `env:"CADENCE_MIGRATE" yaml:"migrate"`
}

// PipelineConfig tunes document preparation and admission.
type PipelineConfig struct {
	// Concurrency is the worker count cleaning and classifying one feed's documents.
	Concurrency int `env:"PIPELINE_CONCURRENCY" yaml:"concurrency"`
	// AdmitGrace bounds admission of already-prepared documents after a scrape times out.
	AdmitGrace time.Duration `yaml:"admit_grace"`
}

// Path returns CONFIG_PATH or config.yml.
func Path() string {
	return infraconfig.GetConfigPath(defaultConfigPath)
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults[Config](path, SetDefaults)
	if err != nil {
		return nil, err
	}
	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, validateErr
	}
	return cfg, nil
}

// SetDefaults applies default values to the config.
func SetDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = defaultServiceVersion
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = defaultRedisTimeout
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = defaultRedisTimeout
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = defaultConcurrency
	}
	if cfg.Pipeline.AdmitGrace == 0 {
		cfg.Pipeline.AdmitGrace = defaultAdmitGrace
	}

	cfg.Database.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Server.SetDefaults()
	cfg.Scheduler.SetDefaults()
	cfg.Fetch.SetDefaults()
	cfg.RateLimit.SetDefaults()
	cfg.Profiling.SetDefaults()

	sink := worker.DefaultSinkConfig()
	if cfg.Sink.FlushInterval == 0 {
		cfg.Sink.FlushInterval = sink.FlushInterval
	}
	if cfg.Sink.BatchSize == 0 {
		cfg.Sink.BatchSize = sink.BatchSize
	}
	if cfg.Sink.MaxAttempts == 0 {
		cfg.Sink.MaxAttempts = sink.MaxAttempts
	}
	if cfg.Sink.RetryDelay == 0 {
		cfg.Sink.RetryDelay = sink.RetryDelay
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	return infraconfig.All(
		infraconfig.Required("database.host", c.Database.Host),
		infraconfig.Port("database.port", c.Database.Port),
		infraconfig.Required("database.database", c.Database.Database),
		infraconfig.OneOf("database.sslmode", c.Database.SSLMode,
			"disable", "require", "verify-ca", "verify-full"),
		infraconfig.Required("redis.address", c.Redis.Address),
		infraconfig.Port("server.port", c.Server.Port),
		infraconfig.OneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error"),
		infraconfig.Positive("scheduler.max_concurrent", c.Scheduler.MaxConcurrent),
		infraconfig.Positive("scheduler.max_attempts", c.Scheduler.MaxAttempts),
		infraconfig.Positive("sink.batch_size", c.Sink.BatchSize),
		infraconfig.Positive("pipeline.concurrency", c.Pipeline.Concurrency),
		minMax("rate_limit", c.RateLimit.MinDelay, c.RateLimit.MaxDelay),
		infraconfig.Port("profiling.port", c.Profiling.Port),
	)
}

func minMax(field string, lo, hi time.Duration) error {
	if hi < lo {
		return &infraconfig.ValidationError{Field: field, Message: "max_delay must not be below min_delay"}
	}
	return nil
}
