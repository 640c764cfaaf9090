package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const (
	// HealthWindow is how recent a parse run must be for the agency to count as present.
	HealthWindow = 48 * time.Hour
	// ZeroRunThreshold is how many latest runs must all be empty to flag an agency.
	ZeroRunThreshold = 2
)

// HealthRepository reports agencies whose scrapes look broken.
type HealthRepository struct {
	db *sqlx.DB
}

// NewHealthRepository creates a new repository.
func NewHealthRepository(db *sqlx.DB) *HealthRepository {
	return &HealthRepository{db: db}
}

// Report returns MISSING and UNHEALTHY agencies. Healthy agencies are omitted
// and MISSING takes precedence when both apply.
func (r *HealthRepository) Report(ctx context.Context, now time.Time) ([]domain.AgencyHealth, error) {
	summaryQuery := `
		SELECT
			a.agency_id,
			a.canonical_name,
			a.platform_type,
			MAX(pr.run_at)       AS last_run_at,
			MAX(pr.docs_fetched) AS docs_fetched_last
		FROM agencies a
		LEFT JOIN parse_runs pr
			ON pr.agency_id = a.agency_id
		   AND pr.run_at >= $1
		WHERE a.platform_type IS NOT NULL
		GROUP BY a.agency_id, a.canonical_name, a.platform_type
		ORDER BY a.agency_id`

	summary := make([]domain.AgencyHealth, 0)
	if err := r.db.SelectContext(ctx, &summary, summaryQuery, now.Add(-HealthWindow).UTC()); err != nil {
		return nil, fmt.Errorf("query health summary: %w", err)
	}

	zeroQuery := `
		WITH ranked AS (
			SELECT agency_id, docs_fetched,
			       ROW_NUMBER() OVER (PARTITION BY agency_id ORDER BY run_at DESC) AS rn
			FROM parse_runs
		)
		SELECT agency_id
		FROM ranked
		WHERE rn <= $1
		GROUP BY agency_id
		HAVING COUNT(*) >= $1
		   AND SUM(CASE WHEN docs_fetched = 0 THEN 1 ELSE 0 END) >= $1`

	zeroIDs := make([]string, 0)
	if err := r.db.SelectContext(ctx, &zeroIDs, zeroQuery, ZeroRunThreshold); err != nil {
		return nil, fmt.Errorf("query consecutive zero runs: %w", err)
	}
	unhealthy := make(map[string]struct{}, len(zeroIDs))
	for _, id := range zeroIDs {
		unhealthy[id] = struct{}{}
	}

	report := make([]domain.AgencyHealth, 0)
	for _, row := range summary {
		switch {
		case !row.LastRunAt.Valid:
			row.Status = domain.HealthMissing
		case hasKey(unhealthy, row.AgencyID):
			row.Status = domain.HealthUnhealthy
		default:
			continue
		}
		report = append(report, row)
	}
	return report, nil
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
