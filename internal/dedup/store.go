package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
)

// Store is the set-membership and TTL-key contract the gate runs on.
type Store interface {
	IsMember(ctx context.Context, set, member string) (bool, error)
	AddMember(ctx context.Context, set, member string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetWithTTL(ctx context.Context, key string, ttl time.Duration) error
}

// RedisStore implements Store on a go-redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IsMember(ctx context.Context, set, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", set, err)
	}
	return ok, nil
}

func (s *RedisStore) AddMember(ctx context.Context, set, member string) error {
	if err := s.client.SAdd(ctx, set, member).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", set, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// MemoryStore is the single-process equivalent of RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock lets tests drive key expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		sets:    make(map[string]map[string]struct{}),
		expires: make(map[string]time.Time),
		now:     now,
	}
}

func (s *MemoryStore) IsMember(_ context.Context, set, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sets[set][member]
	return ok, nil
}

func (s *MemoryStore) AddMember(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.sets[set]
	if !ok {
		members = make(map[string]struct{})
		s.sets[set] = members
	}
	members[member] = struct{}{}
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.expires[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expiry) {
		delete(s.expires, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expires[key] = s.now().Add(ttl)
	return nil
}

// FailoverStore forwards to a primary store until it fails once, then serves
// every later call from a fallback built on first need. The switch is never
// undone, so an unreachable backend is not retried for the life of the process.
type FailoverStore struct {
	primary     Store
	newFallback func() Store
	logger      infralogger.Logger

	failed   atomic.Bool
	once     sync.Once
	fallback Store
}

// NewFailoverStore wires primary with a lazily constructed fallback.
func NewFailoverStore(primary Store, newFallback func() Store, log infralogger.Logger) *FailoverStore {
	return &FailoverStore{
		primary:     primary,
		newFallback: newFallback,
		logger:      log,
	}
}

// Degraded reports whether the fallback is in use.
func (s *FailoverStore) Degraded() bool {
	return s.failed.Load()
}

func (s *FailoverStore) backup() Store {
	s.once.Do(func() {
		s.fallback = s.newFallback()
	})
	return s.fallback
}

// trip switches to the fallback. Context cancellation is the caller's doing,
// not a store outage, and leaves the primary in place.
func (s *FailoverStore) trip(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if s.failed.CompareAndSwap(false, true) {
		s.logger.Warn("Dedup store unavailable, using in-process fallback",
			infralogger.Error(err),
		)
	}
	return true
}

func (s *FailoverStore) IsMember(ctx context.Context, set, member string) (bool, error) {
	if !s.failed.Load() {
		ok, err := s.primary.IsMember(ctx, set, member)
		if err == nil || !s.trip(err) {
			return ok, err
		}
	}
	return s.backup().IsMember(ctx, set, member)
}

func (s *FailoverStore) AddMember(ctx context.Context, set, member string) error {
	if !s.failed.Load() {
		err := s.primary.AddMember(ctx, set, member)
		if err == nil || !s.trip(err) {
			return err
		}
	}
	return s.backup().AddMember(ctx, set, member)
}

func (s *FailoverStore) Exists(ctx context.Context, key string) (bool, error) {
	if !s.failed.Load() {
		ok, err := s.primary.Exists(ctx, key)
		if err == nil || !s.trip(err) {
			return ok, err
		}
	}
	return s.backup().Exists(ctx, key)
}

func (s *FailoverStore) SetWithTTL(ctx context.Context, key string, ttl time.Duration) error {
	if !s.failed.Load() {
		err := s.primary.SetWithTTL(ctx, key, ttl)
		if err == nil || !s.trip(err) {
			return err
		}
	}
	return s.backup().SetWithTTL(ctx, key, ttl)
}
