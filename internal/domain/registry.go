package domain

import (
	"database/sql"
	"time"
)

// Frequency is an agency's scrape cadence.
type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

// Window returns how long a feed URL is considered fresh after a fetch.
// Unknown values use the daily window.
func (f Frequency) Window() time.Duration {
	switch f {
	case FrequencyRealtime:
		return 15 * time.Minute
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Agency is a law-enforcement agency in the registry.
type Agency struct {
	ID                   string         `db:"agency_id"              json:"agency_id"`
	CanonicalName        string         `db:"canonical_name"         json:"canonical_name"`
	County               sql.NullString `db:"county"                 json:"-"`
	PlatformType         sql.NullString `db:"platform_type"          json:"-"`
	CrimeMappingAgencyID sql.NullInt64  `db:"crimemapping_agency_id" json:"-"`
	ScrapeFrequency      Frequency      `db:"scrape_frequency"       json:"scrape_frequency"`
	CreatedAt            time.Time      `db:"created_at"             json:"created_at"`

	Feeds []Feed `db:"-" json:"feeds,omitempty"`
}

// Platform resolves the agency's platform_type column.
func (a *Agency) Platform() PlatformKind {
	if !a.PlatformType.Valid {
		return PlatformUnknown
	}
	return ParsePlatform(a.PlatformType.String)
}

// ActiveFeeds returns the feeds flagged active.
func (a *Agency) ActiveFeeds() []Feed {
	out := make([]Feed, 0, len(a.Feeds))
	for _, f := range a.Feeds {
		if f.Active {
			out = append(out, f)
		}
	}
	return out
}

// Feed is one scrapeable URL belonging to an agency.
type Feed struct {
	ID             string         `db:"feed_id"         json:"feed_id"`
	AgencyID       string         `db:"agency_id"       json:"agency_id"`
	FeedType       string         `db:"feed_type"       json:"feed_type"`
	URL            string         `db:"url"             json:"url"`
	Active         bool           `db:"is_active"       json:"is_active"`
	LastScraped    sql.NullTime   `db:"last_scraped"    json:"-"`
	LastSuccessful sql.NullTime   `db:"last_successful" json:"-"`
	LastError      sql.NullString `db:"last_error"      json:"-"`
}

// ParseRun records the outcome of one agency scrape.
type ParseRun struct {
	ID           string    `db:"id"            json:"id"`
	AgencyID     string    `db:"agency_id"     json:"agency_id"`
	RunAt        time.Time `db:"run_at"        json:"run_at"`
	DocsFetched  int       `db:"docs_fetched"  json:"docs_fetched"`
	FeedsScraped int       `db:"feeds_scraped" json:"feeds_scraped"`
	ErrorCount   int       `db:"error_count"   json:"error_count"`
	PlatformType string    `db:"platform_type" json:"platform_type"`
}

// HealthStatus classifies an agency that needs attention.
type HealthStatus string

const (
	// HealthMissing means no parse run within the health window.
	HealthMissing HealthStatus = "MISSING"
	// HealthUnhealthy means the most recent runs all produced zero documents.
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// AgencyHealth is one row of the unhealthy-agencies report.
type AgencyHealth struct {
	AgencyID        string         `db:"agency_id"         json:"agency_id"`
	CanonicalName   string         `db:"canonical_name"    json:"canonical_name"`
	PlatformType    sql.NullString `db:"platform_type"     json:"-"`
	LastRunAt       sql.NullTime   `db:"last_run_at"       json:"-"`
	DocsFetchedLast sql.NullInt64  `db:"docs_fetched_last" json:"-"`
	Status          HealthStatus   `db:"-"                 json:"status"`
}
