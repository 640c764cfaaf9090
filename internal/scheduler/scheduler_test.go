package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/database"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
	"github.com/jonesrussell/north-cloud/cadence/internal/scheduler"
	"github.com/jonesrussell/north-cloud/cadence/internal/telemetry"
)

type staticDue []string

func (d staticDue) DueAgencyIDs(context.Context, time.Time) ([]string, error) { return d, nil }

type scrapeFunc func(ctx context.Context, id string, attempt int) error

type fakeScraper struct {
	fn       scrapeFunc
	mu       sync.Mutex
	attempts map[string]int
	active   atomic.Int32
	peak     atomic.Int32
}

func newScraper(fn scrapeFunc) *fakeScraper {
	return &fakeScraper{fn: fn, attempts: make(map[string]int)}
}

func (s *fakeScraper) ScrapeAgency(ctx context.Context, id string) (ingest.Summary, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	s.mu.Lock()
	s.attempts[id]++
	attempt := s.attempts[id]
	s.mu.Unlock()

	return ingest.Summary{AgencyID: id}, s.fn(ctx, id, attempt)
}

type memoryDLQ struct {
	mu      sync.Mutex
	entries []domain.DeadLetterEntry
}

func (d *memoryDLQ) PushDLQ(_ context.Context, e *domain.DeadLetterEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, *e)
	return nil
}

// barrierDLQ blocks each push until want pushes are in flight at once.
type barrierDLQ struct {
	memoryDLQ
	want     int
	inFlight atomic.Int32
	ready    chan struct{}
	timedOut atomic.Bool
}

func (d *barrierDLQ) PushDLQ(ctx context.Context, e *domain.DeadLetterEntry) error {
	if int(d.inFlight.Add(1)) == d.want {
		close(d.ready)
	}
	select {
	case <-d.ready:
	case <-time.After(2 * time.Second):
		d.timedOut.Store(true)
	}
	return d.memoryDLQ.PushDLQ(ctx, e)
}

func newScheduler(t *testing.T, due scheduler.DueLister, s scheduler.Scraper, dlq scheduler.DeadLetterer, cfg scheduler.Config) *scheduler.Scheduler {
	t.Helper()

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	sch, err := scheduler.New(due, s, dlq, telemetry.NewProvider(prometheus.NewRegistry()), cfg, infralogger.NewNop())
	require.NoError(t, err)
	return sch
}

func TestRunOnce_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	ids := make(staticDue, 0, 8)
	for i := range 8 {
		ids = append(ids, fmt.Sprintf("agency-%d", i))
	}
	scraper := newScraper(func(context.Context, string, int) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	dlq := &memoryDLQ{}

	result, err := newScheduler(t, ids, scraper, dlq, scheduler.Config{MaxConcurrent: 3}).
		RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, result.Due)
	assert.Equal(t, 8, result.Succeeded)
	assert.Len(t, result.Summaries, 8)
	assert.LessOrEqual(t, scraper.peak.Load(), int32(3))
	assert.Empty(t, dlq.entries)
}

func TestRunOnce_RetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	scraper := newScraper(func(_ context.Context, id string, attempt int) error {
		switch id {
		case "flaky":
			if attempt < 2 {
				return errors.New("status 502")
			}
			return nil
		case "broken":
			return errors.New("status 500")
		case "gone":
			return fmt.Errorf("load agency: %w", database.ErrAgencyNotFound)
		}
		return nil
	})
	dlq := &memoryDLQ{}

	result, err := newScheduler(t, staticDue{"flaky", "broken", "gone"}, scraper, dlq, scheduler.Config{MaxAttempts: 3}).
		RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.DeadLettered)
	assert.Equal(t, 2, scraper.attempts["flaky"])
	assert.Equal(t, 3, scraper.attempts["broken"])
	assert.Equal(t, 1, scraper.attempts["gone"])

	byAgency := make(map[string]domain.DeadLetterEntry)
	for _, e := range dlq.entries {
		byAgency[e.AgencyID] = e
	}
	require.Len(t, byAgency, 2)
	assert.Equal(t, 3, byAgency["broken"].Attempts)
	assert.Contains(t, byAgency["broken"].Error, "status 500")
	assert.Equal(t, 1, byAgency["gone"].Attempts)
	assert.False(t, byAgency["gone"].TS.IsZero())
}

func TestRunOnce_DeadLetterWritesRunConcurrently(t *testing.T) {
	t.Parallel()

	scraper := newScraper(func(context.Context, string, int) error {
		return errors.New("status 503")
	})
	dlq := &barrierDLQ{want: 2, ready: make(chan struct{})}

	result, err := newScheduler(t, staticDue{"a", "b"}, scraper, dlq,
		scheduler.Config{MaxConcurrent: 2, MaxAttempts: 1}).RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, dlq.timedOut.Load(), "dead-letter writes were serialized")
	assert.Equal(t, 2, result.DeadLettered)
	assert.Len(t, dlq.entries, 2)
}

func TestRunOnce_PerAgencyTimeout(t *testing.T) {
	t.Parallel()

	scraper := newScraper(func(ctx context.Context, _ string, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	dlq := &memoryDLQ{}

	result, err := newScheduler(t, staticDue{"slow"}, scraper, dlq,
		scheduler.Config{AgencyTimeout: 20 * time.Millisecond, MaxAttempts: 1}).
		RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DeadLettered)
	require.Len(t, dlq.entries, 1)
	assert.Contains(t, dlq.entries[0].Error, context.DeadlineExceeded.Error())
}

func TestRunOnce_CancelledScanIsNotDeadLettered(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	scraper := newScraper(func(ctx context.Context, _ string, _ int) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	dlq := &memoryDLQ{}

	_, err := newScheduler(t, staticDue{"a"}, scraper, dlq, scheduler.Config{}).RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dlq.entries)
}

func TestRunOnce_RejectsOverlap(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	scraper := newScraper(func(context.Context, string, int) error {
		close(started)
		<-release
		return nil
	})
	sch := newScheduler(t, staticDue{"a"}, scraper, &memoryDLQ{}, scheduler.Config{})

	done := make(chan error, 1)
	go func() {
		_, err := sch.RunOnce(context.Background())
		done <- err
	}()
	<-started

	_, err := sch.RunOnce(context.Background())
	require.ErrorIs(t, err, scheduler.ErrScanInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestNew_InvalidSchedule(t *testing.T) {
	t.Parallel()

	_, err := scheduler.New(staticDue{}, newScraper(nil), &memoryDLQ{},
		telemetry.NewProvider(prometheus.NewRegistry()),
		scheduler.Config{Schedule: "every quarter hour"}, infralogger.NewNop())
	require.Error(t, err)
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg scheduler.Config
	cfg.SetDefaults()

	assert.Equal(t, "*/15 * * * *", cfg.Schedule)
	assert.Equal(t, 10, cfg.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, cfg.AgencyTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
}
