package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// FeedRepository records per-feed scrape outcomes.
type FeedRepository struct {
	db *sqlx.DB
}

// NewFeedRepository creates a new repository.
func NewFeedRepository(db *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// RecordSuccess stamps the feed as scraped and clears its last error.
func (r *FeedRepository) RecordSuccess(ctx context.Context, feedID string, at time.Time) error {
	query := `
		UPDATE agency_feeds
		SET last_scraped = $2, last_successful = $2, last_error = NULL
		WHERE feed_id = $1`

	if _, err := r.db.ExecContext(ctx, query, feedID, at.UTC()); err != nil {
		return fmt.Errorf("record feed success %s: %w", feedID, err)
	}
	return nil
}

// RecordFailure stores the error message. last_scraped is left alone so the
// feed stays due on the next scan.
func (r *FeedRepository) RecordFailure(ctx context.Context, feedID, message string) error {
	query := `UPDATE agency_feeds SET last_error = $2 WHERE feed_id = $1`

	if _, err := r.db.ExecContext(ctx, query, feedID, message); err != nil {
		return fmt.Errorf("record feed failure %s: %w", feedID, err)
	}
	return nil
}
