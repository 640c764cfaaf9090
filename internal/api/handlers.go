// Package api serves the cadence ops endpoints: agency health, queue stats,
// manual scrapes and dry runs of the cleaner and classifier.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/classifier"
	"github.com/jonesrussell/north-cloud/cadence/internal/cleaner"
	"github.com/jonesrussell/north-cloud/cadence/internal/database"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
)

// classifyAgencyID stands in for a missing agency_id on dry-run classification.
const classifyAgencyID = "adhoc"

// HealthReporter lists agencies that need attention.
type HealthReporter interface {
	Report(ctx context.Context, now time.Time) ([]domain.AgencyHealth, error)
}

// QueueInspector exposes queue and dead-letter state.
type QueueInspector interface {
	Depth(ctx context.Context) (int64, error)
	DLQDepth(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context, limit int64) ([]domain.DeadLetterEntry, error)
}

// Scraper runs one agency on demand.
type Scraper interface {
	ScrapeAgency(ctx context.Context, agencyID string) (ingest.Summary, error)
}

// Handler holds the API dependencies.
type Handler struct {
	health     HealthReporter
	queue      QueueInspector
	scraper    Scraper
	classifier *classifier.Classifier
	logger     infralogger.Logger
	now        func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(
	health HealthReporter,
	queue QueueInspector,
	scraper Scraper,
	cls *classifier.Classifier,
	logger infralogger.Logger,
) *Handler {
	return &Handler{
		health:     health,
		queue:      queue,
		scraper:    scraper,
		classifier: cls,
		logger:     logger,
		now:        time.Now,
	}
}

// UnhealthyAgencies handles GET /api/v1/agencies/unhealthy.
func (h *Handler) UnhealthyAgencies(c *gin.Context) {
	now := h.now().UTC()
	rows, err := h.health.Report(c.Request.Context(), now)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to build health report", err)
		return
	}

	out := make([]AgencyHealthResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAgencyHealthResponse(r))
	}
	c.JSON(http.StatusOK, UnhealthyAgenciesResponse{Agencies: out, Total: len(out), GeneratedAt: now})
}

// QueueStats handles GET /api/v1/queue/stats?limit=N.
func (h *Handler) QueueStats(c *gin.Context) {
	limit := int64(defaultDeadLetterLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 || n > maxDeadLetterLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 0 and 500"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	depth, err := h.queue.Depth(ctx)
	if err != nil {
		h.fail(c, http.StatusServiceUnavailable, "queue unavailable", err)
		return
	}
	dlqDepth, err := h.queue.DLQDepth(ctx)
	if err != nil {
		h.fail(c, http.StatusServiceUnavailable, "queue unavailable", err)
		return
	}

	entries := []domain.DeadLetterEntry{}
	if limit > 0 {
		entries, err = h.queue.DeadLetters(ctx, limit)
		if err != nil {
			h.fail(c, http.StatusServiceUnavailable, "queue unavailable", err)
			return
		}
	}

	c.JSON(http.StatusOK, QueueStatsResponse{Depth: depth, DLQDepth: dlqDepth, DeadLetters: entries})
}

// ScrapeAgency handles POST /api/v1/agencies/:id/scrape. It runs synchronously
// and answers with the scrape summary.
func (h *Handler) ScrapeAgency(c *gin.Context) {
	id := c.Param("id")
	summary, err := h.scraper.ScrapeAgency(c.Request.Context(), id)
	switch {
	case errors.Is(err, database.ErrAgencyNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "agency not found"})
	case err != nil:
		infralogger.FromContext(c.Request.Context()).Error("Manual scrape failed",
			infralogger.AgencyID(id), infralogger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "summary": summary})
	default:
		c.JSON(http.StatusOK, summary)
	}
}

// Clean handles POST /api/v1/clean.
func (h *Handler) Clean(c *gin.Context) {
	var req CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, cleaner.CleanPlatform(req.Text, req.PlatformType))
}

// Classify handles POST /api/v1/classify.
func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	agencyID := req.AgencyID
	if agencyID == "" {
		agencyID = classifyAgencyID
	}
	doc, err := domain.NewRawDocument(req.URL, agencyID, req.DocumentTypeHint, req.Title, req.Text, nil, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.classifier.Decide(doc, domain.ParsePlatform(req.PlatformType)))
}

func (h *Handler) fail(c *gin.Context, code int, msg string, err error) {
	infralogger.FromContext(c.Request.Context()).Error(msg, infralogger.Error(err))
	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: msg})
}
