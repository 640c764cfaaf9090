package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/cadence/infrastructure/metrics"
)

func TestMiddleware_LabelsByRoute(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	m := metrics.NewHTTPMetrics("cadence", prometheus.NewRegistry())
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/v1/agencies/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/v1/agencies/a", "/api/v1/agencies/b", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/api/v1/agencies/:id", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "unmatched", "404")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.InFlight), 0)
}
