package api

import (
	"time"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const (
	defaultDeadLetterLimit = 20
	maxDeadLetterLimit     = 500
)

// AgencyHealthResponse is one unhealthy or missing agency.
type AgencyHealthResponse struct {
	AgencyID        string              `json:"agency_id"`
	CanonicalName   string              `json:"canonical_name"`
	PlatformType    string              `json:"platform_type,omitempty"`
	LastRunAt       *time.Time          `json:"last_run_at"`
	DocsFetchedLast *int64              `json:"docs_fetched_last"`
	Status          domain.HealthStatus `json:"status"`
}

// UnhealthyAgenciesResponse is the body of GET /api/v1/agencies/unhealthy.
type UnhealthyAgenciesResponse struct {
	Agencies    []AgencyHealthResponse `json:"agencies"`
	Total       int                    `json:"total"`
	GeneratedAt time.Time              `json:"generated_at"`
}

func toAgencyHealthResponse(h domain.AgencyHealth) AgencyHealthResponse {
	resp := AgencyHealthResponse{
		AgencyID:      h.AgencyID,
		CanonicalName: h.CanonicalName,
		PlatformType:  h.PlatformType.String,
		Status:        h.Status,
	}
	if h.LastRunAt.Valid {
		t := h.LastRunAt.Time
		resp.LastRunAt = &t
	}
	if h.DocsFetchedLast.Valid {
		n := h.DocsFetchedLast.Int64
		resp.DocsFetchedLast = &n
	}
	return resp
}

// QueueStatsResponse is the body of GET /api/v1/queue/stats.
type QueueStatsResponse struct {
	Depth       int64                    `json:"depth"`
	DLQDepth    int64                    `json:"dlq_depth"`
	DeadLetters []domain.DeadLetterEntry `json:"dead_letters"`
}

// CleanRequest is the body of POST /api/v1/clean.
type CleanRequest struct {
	Text         string `json:"text"          binding:"required"`
	PlatformType string `json:"platform_type"`
}

// ClassifyRequest is the body of POST /api/v1/classify.
type ClassifyRequest struct {
	URL              string `json:"url"                binding:"required"`
	AgencyID         string `json:"agency_id"`
	Title            string `json:"title"`
	Text             string `json:"text"`
	DocumentTypeHint string `json:"document_type_hint"`
	PlatformType     string `json:"platform_type"`
}

// ErrorResponse is returned for every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
