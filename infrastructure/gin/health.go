package gin

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus is the status of the service or one of its dependencies.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker checks one dependency.
type HealthChecker func(ctx context.Context) CheckResult

// PingChecker wraps a ping. A failed ping reports unhealthy when critical is
// set and degraded otherwise.
func PingChecker(ping func(ctx context.Context) error, critical bool) HealthChecker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		err := ping(ctx)
		latency := time.Since(start).Round(time.Microsecond).String()

		if err == nil {
			return CheckResult{Status: HealthStatusHealthy, Latency: latency}
		}
		status := HealthStatusDegraded
		if critical {
			status = HealthStatusUnhealthy
		}
		return CheckResult{Status: status, Message: err.Error(), Latency: latency}
	}
}

// RegisterHealthRoutes adds GET and HEAD /health. The GET status code is 503
// only when some check is unhealthy; degraded still answers 200.
func RegisterHealthRoutes(router *gin.Engine, cfg *Config, checks map[string]HealthChecker) {
	started := time.Now()
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	router.GET("/health", func(c *gin.Context) {
		resp := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: cfg.ServiceName,
			Version: cfg.ServiceVersion,
			Uptime:  time.Since(started).Round(time.Second).String(),
		}

		if len(names) > 0 {
			resp.Checks = make(map[string]CheckResult, len(names))
			for _, name := range names {
				ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.CheckTimeout)
				result := checks[name](ctx)
				cancel()

				resp.Checks[name] = result
				resp.Status = worse(resp.Status, result.Status)
			}
		}

		code := http.StatusOK
		if resp.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	})
	router.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
