package gin

import (
	"time"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
)

// ServerBuilder assembles a Server.
type ServerBuilder struct {
	config      *Config
	logger      infralogger.Logger
	checks      map[string]HealthChecker
	middleware  []gin.HandlerFunc
	setupRoutes func(*gin.Engine)
}

// NewServerBuilder starts a builder for serviceName listening on port.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config: &Config{ServiceName: serviceName, Port: port},
		checks: make(map[string]HealthChecker),
	}
}

func (b *ServerBuilder) WithLogger(log infralogger.Logger) *ServerBuilder {
	b.logger = log
	return b
}

func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

// WithTimeouts sets read, write and idle timeouts. Zero keeps the default.
func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithHealthCheck adds a named check to /health.
func (b *ServerBuilder) WithHealthCheck(name string, checker HealthChecker) *ServerBuilder {
	b.checks[name] = checker
	return b
}

// WithMiddleware appends middleware after the standard chain.
func (b *ServerBuilder) WithMiddleware(mw ...gin.HandlerFunc) *ServerBuilder {
	b.middleware = append(b.middleware, mw...)
	return b
}

func (b *ServerBuilder) WithRoutes(setupRoutes func(*gin.Engine)) *ServerBuilder {
	b.setupRoutes = setupRoutes
	return b
}

// Build creates the server. A missing logger becomes a no-op logger.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = infralogger.NewNop()
	}
	setup := b.setupRoutes
	if len(b.middleware) > 0 {
		mw := b.middleware
		setup = func(router *gin.Engine) {
			router.Use(mw...)
			if b.setupRoutes != nil {
				b.setupRoutes(router)
			}
		}
	}
	return NewServer(b.config, b.logger, b.checks, setup)
}
