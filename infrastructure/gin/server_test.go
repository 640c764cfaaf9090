package gin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	ginpkg "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infragin "github.com/jonesrussell/north-cloud/cadence/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
)

func serve(t *testing.T, router http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	var fromCtx infralogger.Logger
	router := ginpkg.New()
	router.Use(infragin.RequestIDMiddleware(infralogger.NewNop()))
	router.GET("/x", func(c *ginpkg.Context) {
		fromCtx = infralogger.FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(t, router, http.MethodGet, "/x", nil)
	assert.Len(t, w.Header().Get(infragin.RequestIDHeader), 36)
	assert.NotNil(t, fromCtx)

	w = serve(t, router, http.MethodGet, "/x", map[string]string{infragin.RequestIDHeader: "upstream-1"})
	assert.Equal(t, "upstream-1", w.Header().Get(infragin.RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	router := ginpkg.New()
	router.Use(infragin.RecoveryMiddleware(infralogger.NewNop()))
	router.GET("/boom", func(*ginpkg.Context) { panic("boom") })

	w := serve(t, router, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]infragin.HealthChecker
		code   int
		status infragin.HealthStatus
	}{
		{"no checks", nil, http.StatusOK, infragin.HealthStatusHealthy},
		{
			"optional dependency down",
			map[string]infragin.HealthChecker{
				"database": infragin.PingChecker(ok, true),
				"redis":    infragin.PingChecker(down, false),
			},
			http.StatusOK, infragin.HealthStatusDegraded,
		},
		{
			"critical dependency down",
			map[string]infragin.HealthChecker{
				"database": infragin.PingChecker(down, true),
				"redis":    infragin.PingChecker(down, false),
			},
			http.StatusServiceUnavailable, infragin.HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			builder := infragin.NewServerBuilder("cadence", 0).WithVersion("1.2.3")
			for name, check := range tt.checks {
				builder.WithHealthCheck(name, check)
			}
			srv := builder.Build()

			w := serve(t, srv.Router(), http.MethodGet, "/health", nil)
			require.Equal(t, tt.code, w.Code)

			var resp infragin.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, "cadence", resp.Service)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}
