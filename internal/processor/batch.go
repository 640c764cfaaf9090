// Package processor runs the cleaner and the classifier over fetched
// documents with a bounded worker pool.
package processor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/classifier"
	"github.com/jonesrussell/north-cloud/cadence/internal/cleaner"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const defaultConcurrency = 4

// Prepared is a fetched document with its cleaning and classification.
type Prepared struct {
	Raw            *domain.RawDocument
	Cleaning       domain.CleaningResult
	Classification domain.ClassificationResult
	Canonical      *domain.CanonicalDocument
}

// BatchProcessor prepares documents in parallel while keeping fetch order.
type BatchProcessor struct {
	classifier  *classifier.Classifier
	concurrency int
	logger      infralogger.Logger
	now         func() time.Time
}

// NewBatchProcessor creates a processor. concurrency <= 0 uses a small default.
func NewBatchProcessor(c *classifier.Classifier, concurrency int, log infralogger.Logger) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &BatchProcessor{
		classifier:  c,
		concurrency: concurrency,
		logger:      log,
		now:         time.Now,
	}
}

// Process cleans and classifies docs for an agency on platform. The result
// has the same order as docs. If ctx ends first, the documents prepared so
// far are returned, still in order, together with ctx's error.
func (b *BatchProcessor) Process(
	ctx context.Context,
	docs []*domain.RawDocument,
	platform domain.PlatformKind,
) ([]*Prepared, error) {
	if len(docs) == 0 {
		return []*Prepared{}, nil
	}

	start := time.Now()
	slots := make([]*Prepared, len(docs))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)
	for i, raw := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = b.prepare(raw, platform)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Prepared, 0, len(docs))
	for _, p := range slots {
		if p != nil {
			out = append(out, p)
		}
	}

	b.logger.Debug("Batch prepared",
		infralogger.Int("total", len(docs)),
		infralogger.Int("prepared", len(out)),
		infralogger.Int("concurrency", b.concurrency),
		infralogger.Duration("duration", time.Since(start)),
	)

	if err := ctx.Err(); err != nil && len(out) < len(docs) {
		return out, err
	}
	return out, nil
}

func (b *BatchProcessor) prepare(raw *domain.RawDocument, platform domain.PlatformKind) *Prepared {
	cleaned := cleaner.Clean(raw.RawText, platform)
	class := b.classifier.Classify(raw, platform)
	return &Prepared{
		Raw:            raw,
		Cleaning:       cleaned,
		Classification: class,
		Canonical:      domain.NewCanonicalDocument(raw, cleaned, class, b.now()),
	}
}
