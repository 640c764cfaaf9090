// Package ratelimit spaces out requests to the same host across every cadence
// worker. Redis holds one short-lived key per host; while it exists other
// callers wait. If Redis cannot be reached the limiter falls back to an
// in-process token bucket per host.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
)

const keyPrefix = "cadence:ratelimit:"

// Config bounds the jittered gap between two requests to one host.
type Config struct {
	MinDelay time.Duration `env:"RATELIMIT_MIN_DELAY" yaml:"min_delay"`
	MaxDelay time.Duration `env:"RATELIMIT_MAX_DELAY" yaml:"max_delay"`
}

// SetDefaults applies the 2s to 5s politeness window.
func (c *Config) SetDefaults() {
	if c.MinDelay <= 0 {
		c.MinDelay = 2 * time.Second
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = max(5*time.Second, c.MinDelay)
	}
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithSleep replaces the context-aware sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithJitter replaces the random delay source, for tests.
func WithJitter(jitter func() time.Duration) Option {
	return func(l *Limiter) { l.jitter = jitter }
}

// Limiter enforces a per-host gap between fetches.
type Limiter struct {
	client *redis.Client
	cfg    Config
	logger infralogger.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration

	mu       sync.Mutex
	local    map[string]*rate.Limiter
	degraded atomic.Bool
}

// New creates a Limiter. client may be nil, in which case only the
// in-process limiter is used.
func New(client *redis.Client, cfg Config, log infralogger.Logger, opts ...Option) *Limiter {
	cfg.SetDefaults()
	l := &Limiter{
		client: client,
		cfg:    cfg,
		logger: log,
		sleep:  sleepCtx,
		local:  make(map[string]*rate.Limiter),
	}
	l.jitter = l.randomDelay
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Host extracts the rate-limit domain (host and port) from rawURL.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// Key is the Redis key guarding host.
func Key(host string) string {
	return keyPrefix + host
}

// Wait blocks until a request to rawURL's host is allowed, then claims the
// next slot for this caller.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := Host(rawURL)
	if l.client == nil {
		return l.waitLocal(ctx, host)
	}

	err := l.waitRedis(ctx, host)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if l.degraded.CompareAndSwap(false, true) {
		l.logger.Warn("Rate limit store unavailable, limiting in-process",
			infralogger.String("host", host),
			infralogger.Error(err),
		)
	}
	return l.waitLocal(ctx, host)
}

func (l *Limiter) waitRedis(ctx context.Context, host string) error {
	key := Key(host)

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ttl %s: %w", key, err)
	}
	// TTL reports -2 for a missing key and -1 for one without expiry.
	if ttl > 0 {
		l.logger.Debug("Waiting for host slot",
			infralogger.String("host", host),
			infralogger.Duration("wait", ttl),
		)
		if sleepErr := l.sleep(ctx, ttl); sleepErr != nil {
			return sleepErr
		}
	}

	if setErr := l.client.Set(ctx, key, "1", l.jitter()).Err(); setErr != nil {
		return fmt.Errorf("set %s: %w", key, setErr)
	}
	return nil
}

func (l *Limiter) waitLocal(ctx context.Context, host string) error {
	l.mu.Lock()
	lim, ok := l.local[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.cfg.MinDelay), 1)
		l.local[host] = lim
	}
	l.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", host, err)
	}
	return nil
}

// randomDelay picks a whole number of seconds in [MinDelay, MaxDelay].
func (l *Limiter) randomDelay() time.Duration {
	lo := int64(l.cfg.MinDelay / time.Second)
	hi := int64(l.cfg.MaxDelay / time.Second)
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	return time.Duration(lo+rand.Int64N(hi-lo+1)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
