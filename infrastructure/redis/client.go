// Package redis builds go-redis clients from cadence configuration.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes a Redis connection.
type Config struct {
	Address       string        `env:"REDIS_ADDRESS"  yaml:"address"`
	Password      string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB            int           `env:"REDIS_DB"       yaml:"db"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	PingTimeout   time.Duration `yaml:"ping_timeout"`
	SkipPingOnNew bool          `yaml:"skip_ping"`
}

// ErrEmptyAddress is returned when no address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

const defaultPingTimeout = 5 * time.Second

// NewClient creates a client and, unless SkipPingOnNew is set, verifies it
// answers PING.
//
// Callers that tolerate an unreachable Redis (the dedup gate, the rate limiter)
// set SkipPingOnNew and rely on their own fallback.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})
	if cfg.SkipPingOnNew {
		return client, nil
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return client, nil
}
