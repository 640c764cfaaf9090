package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// ErrAgencyNotFound is returned when no agency has the requested id.
var ErrAgencyNotFound = errors.New("agency not found")

const agencyColumns = `agency_id, canonical_name, county, platform_type,
	crimemapping_agency_id, scrape_frequency, created_at`

const feedColumns = `feed_id, agency_id, feed_type, url, is_active,
	last_scraped, last_successful, last_error`

// AgencyRepository reads the agency registry.
type AgencyRepository struct {
	db *sqlx.DB
}

// NewAgencyRepository creates a new repository.
func NewAgencyRepository(db *sqlx.DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// GetWithFeeds loads one agency together with all of its feeds.
func (r *AgencyRepository) GetWithFeeds(ctx context.Context, agencyID string) (*domain.Agency, error) {
	var agency domain.Agency
	err := r.db.GetContext(ctx, &agency,
		`SELECT `+agencyColumns+` FROM agencies WHERE agency_id = $1`, agencyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAgencyNotFound, agencyID)
	}
	if err != nil {
		return nil, fmt.Errorf("get agency %s: %w", agencyID, err)
	}

	feeds := make([]domain.Feed, 0)
	if selectErr := r.db.SelectContext(ctx, &feeds,
		`SELECT `+feedColumns+` FROM agency_feeds WHERE agency_id = $1 ORDER BY url`, agencyID,
	); selectErr != nil {
		return nil, fmt.Errorf("list feeds for %s: %w", agencyID, selectErr)
	}
	agency.Feeds = feeds

	return &agency, nil
}

// List returns every agency ordered by id, without feeds.
func (r *AgencyRepository) List(ctx context.Context) ([]domain.Agency, error) {
	agencies := make([]domain.Agency, 0)
	if err := r.db.SelectContext(ctx, &agencies,
		`SELECT `+agencyColumns+` FROM agencies ORDER BY agency_id`,
	); err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	return agencies, nil
}

type feedSchedule struct {
	AgencyID        string           `db:"agency_id"`
	ScrapeFrequency domain.Frequency `db:"scrape_frequency"`
	LastScraped     sql.NullTime     `db:"last_scraped"`
}

// DueAgencyIDs returns agencies with a platform and at least one active feed
// whose last scrape is missing or older than the agency's frequency window.
func (r *AgencyRepository) DueAgencyIDs(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT a.agency_id, a.scrape_frequency, f.last_scraped
		FROM agencies a
		JOIN agency_feeds f ON f.agency_id = a.agency_id
		WHERE a.platform_type IS NOT NULL
		  AND f.is_active
		ORDER BY a.agency_id`

	rows := make([]feedSchedule, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query due agencies: %w", err)
	}

	due := make([]string, 0)
	seen := make(map[string]struct{})
	for _, row := range rows {
		if _, ok := seen[row.AgencyID]; ok {
			continue
		}
		cutoff := now.Add(-row.ScrapeFrequency.Window())
		if !row.LastScraped.Valid || row.LastScraped.Time.Before(cutoff) {
			seen[row.AgencyID] = struct{}{}
			due = append(due, row.AgencyID)
		}
	}
	return due, nil
}
