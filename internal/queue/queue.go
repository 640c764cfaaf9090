// Package queue hands admitted documents to the persistence sink through
// Redis lists, and keeps the dead-letter list for failed agency scrapes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const (
	ProcessingKey = "cadence:processing"
	DLQKey        = "cadence:dlq"
)

// Queue is a Redis-list backed processing queue.
type Queue struct {
	client *redis.Client
	logger infralogger.Logger
}

// New creates a Queue.
func New(client *redis.Client, log infralogger.Logger) *Queue {
	return &Queue{client: client, logger: log}
}

// Push appends doc to the processing queue.
func (q *Queue) Push(ctx context.Context, doc *domain.CanonicalDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.DocHash, err)
	}
	if pushErr := q.client.LPush(ctx, ProcessingKey, payload).Err(); pushErr != nil {
		return fmt.Errorf("lpush %s: %w", ProcessingKey, pushErr)
	}
	return nil
}

// DrainAll removes every queued document and returns them oldest first.
// Entries that no longer decode are logged and dropped.
func (q *Queue) DrainAll(ctx context.Context) ([]*domain.CanonicalDocument, error) {
	var rangeCmd *redis.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, ProcessingKey, 0, -1)
		pipe.Del(ctx, ProcessingKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", ProcessingKey, err)
	}

	raw := rangeCmd.Val()
	// LPUSH puts the newest entry at the head.
	slices.Reverse(raw)

	docs := make([]*domain.CanonicalDocument, 0, len(raw))
	for _, item := range raw {
		var doc domain.CanonicalDocument
		if decodeErr := json.Unmarshal([]byte(item), &doc); decodeErr != nil {
			q.logger.Error("Dropping undecodable queue entry",
				infralogger.Error(decodeErr),
				infralogger.Int("bytes", len(item)),
			)
			continue
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// Requeue puts docs back so the next drain sees them first, in order.
func (q *Queue) Requeue(ctx context.Context, docs []*domain.CanonicalDocument) error {
	if len(docs) == 0 {
		return nil
	}
	// The tail is the oldest end, so the first doc goes last.
	values := make([]any, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		doc := docs[i]
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", doc.DocHash, err)
		}
		values = append(values, payload)
	}
	if err := q.client.RPush(ctx, ProcessingKey, values...).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", ProcessingKey, err)
	}
	return nil
}

// PushDLQ records a failed agency scrape.
func (q *Queue) PushDLQ(ctx context.Context, entry *domain.DeadLetterEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead letter for %s: %w", entry.AgencyID, err)
	}
	if pushErr := q.client.LPush(ctx, DLQKey, payload).Err(); pushErr != nil {
		return fmt.Errorf("lpush %s: %w", DLQKey, pushErr)
	}
	q.logger.Warn("Agency scrape dead-lettered",
		infralogger.AgencyID(entry.AgencyID),
		infralogger.String("error", entry.Error),
		infralogger.Int("attempts", entry.Attempts),
	)
	return nil
}

// DeadLetters returns up to limit DLQ entries, newest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]domain.DeadLetterEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := q.client.LRange(ctx, DLQKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", DLQKey, err)
	}
	entries := make([]domain.DeadLetterEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.DeadLetterEntry
		if decodeErr := json.Unmarshal([]byte(item), &e); decodeErr != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Depth is the processing queue length.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, ProcessingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", ProcessingKey, err)
	}
	return n, nil
}

// DLQDepth is the dead-letter list length.
func (q *Queue) DLQDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, DLQKey).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", DLQKey, err)
	}
	return n, nil
}
