// Package scheduler runs the recurring scan: find due agencies, scrape them
// with bounded concurrency, retry failures and dead-letter what keeps failing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/cadence/internal/database"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
	"github.com/jonesrussell/north-cloud/cadence/internal/telemetry"
)

const (
	defaultSchedule      = "*/15 * * * *"
	defaultMaxConcurrent = 10
	defaultAgencyTimeout = 10 * time.Minute
	defaultMaxAttempts   = 3
	defaultRetryDelay    = 30 * time.Second
	dlqWriteTimeout      = 10 * time.Second
)

// ErrScanInProgress is returned by RunOnce when another scan has not finished.
var ErrScanInProgress = errors.New("scan already in progress")

// DueLister finds agencies that need scraping.
type DueLister interface {
	DueAgencyIDs(ctx context.Context, now time.Time) ([]string, error)
}

// Scraper scrapes one agency.
type Scraper interface {
	ScrapeAgency(ctx context.Context, agencyID string) (ingest.Summary, error)
}

// DeadLetterer records agencies that failed every attempt.
type DeadLetterer interface {
	PushDLQ(ctx context.Context, entry *domain.DeadLetterEntry) error
}

// Config controls the scan.
type Config struct {
	Schedule      string        `env:"SCHEDULER_CRON" yaml:"schedule"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	AgencyTimeout time.Duration `yaml:"agency_timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Schedule == "" {
		c.Schedule = defaultSchedule
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.AgencyTimeout <= 0 {
		c.AgencyTimeout = defaultAgencyTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
}

// ScanResult summarises one pass over the due agencies.
type ScanResult struct {
	Due          int              `json:"due"`
	Succeeded    int              `json:"succeeded"`
	DeadLettered int              `json:"dead_lettered"`
	Summaries    []ingest.Summary `json:"summaries"`
}

// Scheduler owns the cron loop.
type Scheduler struct {
	due       DueLister
	scraper   Scraper
	dlq       DeadLetterer
	telemetry *telemetry.Provider
	logger    infralogger.Logger
	cfg       Config
	now       func() time.Time

	cron     *cron.Cron
	scanning atomic.Bool
}

// New validates cfg.Schedule and builds a Scheduler.
func New(
	due DueLister,
	scraper Scraper,
	dlq DeadLetterer,
	tp *telemetry.Provider,
	cfg Config,
	logger infralogger.Logger,
) (*Scheduler, error) {
	cfg.SetDefaults()

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
	}

	return &Scheduler{
		due:       due,
		scraper:   scraper,
		dlq:       dlq,
		telemetry: tp,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		cron:      cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}, nil
}

// Start registers the scan on the cron schedule and starts the cron loop.
// Scans run with ctx; cancel it to abort in-flight work.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, scanErr := s.RunOnce(ctx); scanErr != nil {
			if errors.Is(scanErr, ErrScanInProgress) {
				s.logger.Warn("Previous scan still running, skipping tick")
				return
			}
			s.logger.Error("Scan failed", infralogger.Error(scanErr))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule scan: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		infralogger.String("schedule", s.cfg.Schedule),
		infralogger.Int("max_concurrent", s.cfg.MaxConcurrent),
		infralogger.Duration("agency_timeout", s.cfg.AgencyTimeout),
		infralogger.Int("max_attempts", s.cfg.MaxAttempts),
	)
	return nil
}

// Stop stops scheduling new scans and waits for the running one.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunOnce performs a single scan.
func (s *Scheduler) RunOnce(ctx context.Context) (ScanResult, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return ScanResult{}, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	start := s.now()
	ids, err := s.due.DueAgencyIDs(ctx, start)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list due agencies: %w", err)
	}

	result := ScanResult{Due: len(ids), Summaries: make([]ingest.Summary, 0, len(ids))}
	if len(ids) == 0 {
		s.logger.Debug("No agencies due")
		return result, nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrent)

	for _, id := range ids {
		g.Go(func() error {
			summary, scrapeErr := s.scrapeWithRetry(ctx, id)
			deadLettered := scrapeErr != nil && s.deadLetter(ctx, id, scrapeErr)

			mu.Lock()
			defer mu.Unlock()
			result.Summaries = append(result.Summaries, summary)
			switch {
			case scrapeErr == nil:
				result.Succeeded++
			case deadLettered:
				result.DeadLettered++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Scan complete",
		infralogger.Int("due", result.Due),
		infralogger.Int("succeeded", result.Succeeded),
		infralogger.Int("dead_lettered", result.DeadLettered),
		infralogger.Duration("duration", s.now().Sub(start)),
	)
	return result, ctx.Err()
}

type attemptError struct {
	attempts int
	err      error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

func (s *Scheduler) scrapeWithRetry(ctx context.Context, agencyID string) (ingest.Summary, error) {
	var (
		summary  ingest.Summary
		attempts int
	)
	log := s.logger.With(infralogger.AgencyID(agencyID))

	err := retry.Retry(ctx, retry.Config{
		MaxAttempts:  s.cfg.MaxAttempts,
		InitialDelay: s.cfg.RetryDelay,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, database.ErrAgencyNotFound)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("Agency scrape failed, retrying",
				infralogger.Int("attempt", attempt),
				infralogger.Duration("delay", delay),
				infralogger.Error(err))
		},
	}, func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AgencyTimeout)
		defer cancel()

		var scrapeErr error
		summary, scrapeErr = s.scraper.ScrapeAgency(attemptCtx, agencyID)
		return scrapeErr
	})
	if err != nil {
		return summary, &attemptError{attempts: attempts, err: err}
	}
	return summary, nil
}

// deadLetter records a final failure. Scans aborted by shutdown are not
// dead-lettered; the agency stays due and is picked up next time.
func (s *Scheduler) deadLetter(ctx context.Context, agencyID string, cause error) bool {
	log := s.logger.With(infralogger.AgencyID(agencyID))
	if ctx.Err() != nil {
		log.Warn("Scan cancelled before agency finished", infralogger.Error(cause))
		return false
	}

	attempts := s.cfg.MaxAttempts
	var ae *attemptError
	if errors.As(cause, &ae) {
		attempts = ae.attempts
	}

	entry, err := domain.NewDeadLetterEntry(agencyID, cause, attempts, s.now())
	if err != nil {
		log.Error("Invalid dead letter entry", infralogger.Error(err))
		return false
	}

	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dlqWriteTimeout)
	defer cancel()
	if pushErr := s.dlq.PushDLQ(dlqCtx, entry); pushErr != nil {
		log.Error("Failed to dead-letter agency", infralogger.Error(pushErr))
		return false
	}
	s.telemetry.RecordDLQEnqueue(dlqCtx)
	return true
}
