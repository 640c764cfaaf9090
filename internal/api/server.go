package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infraconfig "github.com/jonesrussell/north-cloud/cadence/infrastructure/config"
	infragin "github.com/jonesrussell/north-cloud/cadence/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
)

// ServerOptions carries what NewServer needs besides the handler.
type ServerOptions struct {
	ServiceName string
	Version     string
	Debug       bool
	Metrics     http.Handler
	Checks      map[string]infragin.HealthChecker
	Middleware  []gin.HandlerFunc
}

// NewServer builds the ops HTTP server.
func NewServer(handler *Handler, cfg infraconfig.ServerConfig, opts ServerOptions, log infralogger.Logger) *infragin.Server {
	builder := infragin.NewServerBuilder(opts.ServiceName, cfg.Port).
		WithLogger(log).
		WithVersion(opts.Version).
		WithDebug(opts.Debug).
		WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, 0).
		WithMiddleware(opts.Middleware...).
		WithRoutes(func(router *gin.Engine) {
			SetupRoutes(router, handler, opts.Metrics)
		})
	for name, check := range opts.Checks {
		builder.WithHealthCheck(name, check)
	}
	return builder.Build()
}
