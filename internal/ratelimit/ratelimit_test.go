package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/ratelimit"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func fixedJitter(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

func TestHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"https://www.lapdonline.org/newsroom/", "www.lapdonline.org"},
		{"http://pd.example.gov:8080/feed.xml", "pd.example.gov:8080"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ratelimit.Host(tt.in))
		})
	}
}

func TestWait_FreeHostClaimsSlot(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rec := &sleepRecorder{}
	lim := ratelimit.New(client, ratelimit.Config{}, infralogger.NewNop(),
		ratelimit.WithSleep(rec.sleep),
		ratelimit.WithJitter(fixedJitter(4*time.Second)),
	)

	require.NoError(t, lim.Wait(context.Background(), "https://pd.example.gov/news"))
	assert.Empty(t, rec.calls)

	key := ratelimit.Key("pd.example.gov")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 4*time.Second, mr.TTL(key))
}

func TestWait_BusyHostSleepsRemainingTTL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key := ratelimit.Key("pd.example.gov")
	require.NoError(t, mr.Set(key, "1"))
	mr.SetTTL(key, 3*time.Second)

	rec := &sleepRecorder{}
	lim := ratelimit.New(client, ratelimit.Config{}, infralogger.NewNop(),
		ratelimit.WithSleep(rec.sleep),
		ratelimit.WithJitter(fixedJitter(2*time.Second)),
	)

	require.NoError(t, lim.Wait(context.Background(), "https://pd.example.gov/other"))
	assert.Equal(t, []time.Duration{3 * time.Second}, rec.calls)
	assert.Equal(t, 2*time.Second, mr.TTL(key))
}

func TestWait_RedisDownFallsBackInProcess(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.SetError("ERR simulated outage")

	lim := ratelimit.New(client, ratelimit.Config{MinDelay: time.Millisecond, MaxDelay: time.Millisecond}, infralogger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, lim.Wait(ctx, "https://pd.example.gov/a"))
	require.NoError(t, lim.Wait(ctx, "https://pd.example.gov/b"))
}

func TestWait_CancelledWhileSleeping(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key := ratelimit.Key("pd.example.gov")
	require.NoError(t, mr.Set(key, "1"))
	mr.SetTTL(key, time.Minute)

	lim := ratelimit.New(client, ratelimit.Config{}, infralogger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lim.Wait(ctx, "https://pd.example.gov/a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg ratelimit.Config
	cfg.SetDefaults()
	assert.Equal(t, 2*time.Second, cfg.MinDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
}
