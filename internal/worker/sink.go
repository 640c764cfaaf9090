// Package worker provides the persistence sink that moves queued documents
// into Postgres.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/telemetry"
)

const (
	defaultFlushInterval = 10 * time.Second
	defaultBatchSize     = 500
	defaultMaxAttempts   = 3
	defaultRetryDelay    = 500 * time.Millisecond
	shutdownFlushTimeout = 30 * time.Second
)

// DocumentWriter persists canonical documents, skipping known hashes.
type DocumentWriter interface {
	BulkInsert(ctx context.Context, docs []*domain.CanonicalDocument) (int64, error)
}

// Queue is the processing queue the sink drains.
type Queue interface {
	DrainAll(ctx context.Context) ([]*domain.CanonicalDocument, error)
	Requeue(ctx context.Context, docs []*domain.CanonicalDocument) error
	Depth(ctx context.Context) (int64, error)
	DLQDepth(ctx context.Context) (int64, error)
}

// DegradedReporter reports whether dedup is running on its fallback store.
type DegradedReporter interface {
	Degraded() bool
}

// SinkConfig holds configuration options
type SinkConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// DefaultSinkConfig returns sensible defaults
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		FlushInterval: defaultFlushInterval,
		BatchSize:     defaultBatchSize,
		MaxAttempts:   defaultMaxAttempts,
		RetryDelay:    defaultRetryDelay,
	}
}

func (c *SinkConfig) setDefaults() {
	d := DefaultSinkConfig()
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
}

// Sink periodically drains the queue into the document store.
type Sink struct {
	queue     Queue
	repo      DocumentWriter
	dedup     DegradedReporter
	telemetry *telemetry.Provider
	logger    infralogger.Logger
	cfg       SinkConfig

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
	flushMu  sync.Mutex
}

// NewSink creates a sink. dedup may be nil.
func NewSink(
	q Queue,
	repo DocumentWriter,
	dedup DegradedReporter,
	tp *telemetry.Provider,
	cfg SinkConfig,
	logger infralogger.Logger,
) *Sink {
	cfg.setDefaults()
	return &Sink{
		queue:     q,
		repo:      repo,
		dedup:     dedup,
		telemetry: tp,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start begins the flush loop
func (s *Sink) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, stop)

	s.logger.Info("Persistence sink started",
		infralogger.Duration("flush_interval", s.cfg.FlushInterval),
		infralogger.Int("batch_size", s.cfg.BatchSize))
}

// Stop ends the loop after a final flush.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop := s.stopChan
	s.mu.Unlock()

	close(stop)
	s.wg.Wait()
	s.logger.Info("Persistence sink stopped")
}

func (s *Sink) run(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flushAndLog(ctx)
		case <-stop:
			s.finalFlush(ctx)
			return
		case <-ctx.Done():
			s.finalFlush(ctx)
			return
		}
	}
}

func (s *Sink) finalFlush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	s.flushAndLog(flushCtx)
}

func (s *Sink) flushAndLog(ctx context.Context) {
	if _, err := s.Flush(ctx); err != nil {
		s.logger.Error("Sink flush failed", infralogger.Error(err))
	}
}

// Flush drains the queue once and writes it in batches. A batch that still
// fails after retries is pushed back onto the queue with everything after it,
// and the error is returned.
func (s *Sink) Flush(ctx context.Context) (int64, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	defer s.refreshGauges(ctx)

	docs, err := s.queue.DrainAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("drain queue: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ctx, span := s.telemetry.StartSpan(ctx, "sink.flush", attribute.Int("documents", len(docs)))
	defer span.End()

	var inserted int64
	for start := 0; start < len(docs); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(docs))
		batch := docs[start:end]

		n, insertErr := s.insertWithRetry(ctx, batch)
		if insertErr != nil {
			span.RecordError(insertErr)
			s.telemetry.RecordSinkFailure(ctx)
			s.requeue(ctx, docs[start:])
			return inserted, fmt.Errorf("insert batch of %d: %w", len(batch), insertErr)
		}
		inserted += n
	}

	s.telemetry.RecordInserted(ctx, inserted)
	s.logger.Info("Documents persisted",
		infralogger.Int("drained", len(docs)),
		infralogger.Int64("inserted", inserted),
		infralogger.Int64("skipped_duplicates", int64(len(docs))-inserted),
	)
	return inserted, nil
}

func (s *Sink) insertWithRetry(ctx context.Context, batch []*domain.CanonicalDocument) (int64, error) {
	var n int64
	err := retry.Retry(ctx, retry.Config{
		MaxAttempts:  s.cfg.MaxAttempts,
		InitialDelay: s.cfg.RetryDelay,
		IsRetryable:  retry.Always,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			s.logger.Warn("Bulk insert failed, retrying",
				infralogger.Int("attempt", attempt),
				infralogger.Duration("delay", delay),
				infralogger.Error(err))
		},
	}, func() error {
		var insertErr error
		n, insertErr = s.repo.BulkInsert(ctx, batch)
		return insertErr
	})
	return n, err
}

func (s *Sink) requeue(ctx context.Context, docs []*domain.CanonicalDocument) {
	requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()

	if err := s.queue.Requeue(requeueCtx, docs); err != nil {
		s.logger.Error("Failed to requeue documents, they are lost",
			infralogger.Int("count", len(docs)), infralogger.Error(err))
		return
	}
	s.logger.Warn("Documents requeued after failed insert", infralogger.Int("count", len(docs)))
}

func (s *Sink) refreshGauges(ctx context.Context) {
	if depth, err := s.queue.Depth(ctx); err == nil {
		s.telemetry.SetQueueDepth(depth)
	}
	if depth, err := s.queue.DLQDepth(ctx); err == nil {
		s.telemetry.SetDLQDepth(depth)
	}
	if s.dedup != nil {
		s.telemetry.SetDedupDegraded(s.dedup.Degraded())
	}
}
