package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/api"
	"github.com/jonesrussell/north-cloud/cadence/internal/classifier"
	"github.com/jonesrussell/north-cloud/cadence/internal/database"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
	"github.com/jonesrussell/north-cloud/cadence/internal/queue"
)

type fakeReport struct {
	rows []domain.AgencyHealth
	err  error
}

func (f fakeReport) Report(context.Context, time.Time) ([]domain.AgencyHealth, error) {
	return f.rows, f.err
}

type fakeScraper map[string]error

func (f fakeScraper) ScrapeAgency(_ context.Context, id string) (ingest.Summary, error) {
	err, ok := f[id]
	if !ok {
		return ingest.Summary{}, fmt.Errorf("load agency %s: %w", id, database.ErrAgencyNotFound)
	}
	return ingest.Summary{AgencyID: id, Platform: "rss", DocsPushed: 3}, err
}

func setupRouter(t *testing.T, report fakeReport) (*gin.Engine, *queue.Queue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.New(client, infralogger.NewNop())

	scraper := fakeScraper{"oakland-pd": nil, "fresno-pd": errors.New("status 503")}
	handler := api.NewHandler(report, q, scraper, classifier.New(), infralogger.NewNop())

	router := gin.New()
	api.SetupRoutes(router, handler, nil)
	return router, q
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUnhealthyAgencies(t *testing.T) {
	t.Parallel()

	lastRun := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	router, _ := setupRouter(t, fakeReport{rows: []domain.AgencyHealth{
		{AgencyID: "alameda-so", CanonicalName: "Alameda County Sheriff", Status: domain.HealthMissing},
		{
			AgencyID:        "oakland-pd",
			CanonicalName:   "Oakland Police Department",
			PlatformType:    sql.NullString{String: "civicplus", Valid: true},
			LastRunAt:       sql.NullTime{Time: lastRun, Valid: true},
			DocsFetchedLast: sql.NullInt64{Int64: 0, Valid: true},
			Status:          domain.HealthUnhealthy,
		},
	}})

	w := do(t, router, http.MethodGet, "/api/v1/agencies/unhealthy", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 2, resp["total"], 0)

	agencies, ok := resp["agencies"].([]any)
	require.True(t, ok)
	missing, _ := agencies[0].(map[string]any)
	assert.Equal(t, "MISSING", missing["status"])
	assert.Nil(t, missing["last_run_at"])
	assert.Nil(t, missing["docs_fetched_last"])

	unhealthy, _ := agencies[1].(map[string]any)
	assert.Equal(t, "civicplus", unhealthy["platform_type"])
	assert.Equal(t, "2026-03-01T08:00:00Z", unhealthy["last_run_at"])
	assert.InDelta(t, 0, unhealthy["docs_fetched_last"], 0)
}

func TestUnhealthyAgencies_Empty(t *testing.T) {
	t.Parallel()

	router, _ := setupRouter(t, fakeReport{})
	w := do(t, router, http.MethodGet, "/api/v1/agencies/unhealthy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"agencies":[]`)
}

func TestUnhealthyAgencies_ReportError(t *testing.T) {
	t.Parallel()

	router, _ := setupRouter(t, fakeReport{err: errors.New("pq: connection refused")})
	w := do(t, router, http.MethodGet, "/api/v1/agencies/unhealthy", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestQueueStats(t *testing.T) {
	t.Parallel()

	router, q := setupRouter(t, fakeReport{})
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		entry, err := domain.NewDeadLetterEntry(id, errors.New("status 500"), 3, now)
		require.NoError(t, err)
		require.NoError(t, q.PushDLQ(ctx, entry))
	}

	w := do(t, router, http.MethodGet, "/api/v1/queue/stats?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.QueueStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Depth)
	assert.Equal(t, int64(3), resp.DLQDepth)
	require.Len(t, resp.DeadLetters, 2)
	assert.Equal(t, "c", resp.DeadLetters[0].AgencyID)
}

func TestQueueStats_BadLimit(t *testing.T) {
	t.Parallel()

	router, _ := setupRouter(t, fakeReport{})
	for _, limit := range []string{"-1", "abc", "501"} {
		w := do(t, router, http.MethodGet, "/api/v1/queue/stats?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit %s", limit)
	}
}

func TestScrapeAgency(t *testing.T) {
	t.Parallel()

	router, _ := setupRouter(t, fakeReport{})

	tests := []struct {
		id   string
		code int
	}{
		{"oakland-pd", http.StatusOK},
		{"fresno-pd", http.StatusBadGateway},
		{"nowhere-pd", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/agencies/"+tt.id+"/scrape", nil)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	router, _ := setupRouter(t, fakeReport{})

	w := do(t, router, http.MethodPost, "/api/v1/clean", api.CleanRequest{
		Text:         "<p>Officers arrested a suspect near 1234 Main St on January 15, 2024.</p><footer>Powered by CivicPlus</footer>",
		PlatformType: "civicplus",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.CleaningResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got.CleanedText, "1234 Main St")
	assert.NotContains(t, got.CleanedText, "Powered by")
	assert.Positive(t, got.QualityScore)

	w = do(t, router, http.MethodPost, "/api/v1/clean", map[string]string{"platform_type": "rss"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	router, _ := setupRouter(t, fakeReport{})

	w := do(t, router, http.MethodPost, "/api/v1/classify", api.ClassifyRequest{
		URL:          "https://cityof.com/pd/arrests/2024-01",
		PlatformType: "civicplus",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.ArrestLog), resp["document_type"])
	assert.InDelta(t, 0.95, resp["confidence"], 1e-9)
	assert.Equal(t, string(classifier.MethodSignals), resp["method"])

	w = do(t, router, http.MethodPost, "/api/v1/classify", map[string]string{"title": "no url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
