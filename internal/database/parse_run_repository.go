package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const defaultRecentRuns = 10

// ParseRunRepository stores one row per agency scrape.
type ParseRunRepository struct {
	db *sqlx.DB
}

// NewParseRunRepository creates a new repository.
func NewParseRunRepository(db *sqlx.DB) *ParseRunRepository {
	return &ParseRunRepository{db: db}
}

// Record inserts run, assigning an ID and timestamp when they are unset.
func (r *ParseRunRepository) Record(ctx context.Context, run *domain.ParseRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}

	query := `
		INSERT INTO parse_runs
			(id, agency_id, run_at, docs_fetched, feeds_scraped, error_count, platform_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.AgencyID,
		run.RunAt,
		run.DocsFetched,
		run.FeedsScraped,
		run.ErrorCount,
		sql.NullString{String: run.PlatformType, Valid: run.PlatformType != ""},
	)
	if err != nil {
		return fmt.Errorf("record parse run for %s: %w", run.AgencyID, err)
	}
	return nil
}

// Recent returns the agency's latest runs, newest first.
func (r *ParseRunRepository) Recent(ctx context.Context, agencyID string, limit int) ([]domain.ParseRun, error) {
	if limit <= 0 {
		limit = defaultRecentRuns
	}

	query := `
		SELECT id, agency_id, run_at, docs_fetched, feeds_scraped, error_count,
		       COALESCE(platform_type, '') AS platform_type
		FROM parse_runs
		WHERE agency_id = $1
		ORDER BY run_at DESC
		LIMIT $2`

	runs := make([]domain.ParseRun, 0, limit)
	if err := r.db.SelectContext(ctx, &runs, query, agencyID, limit); err != nil {
		return nil, fmt.Errorf("list parse runs for %s: %w", agencyID, err)
	}
	return runs, nil
}
