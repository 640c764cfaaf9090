// Package profiling serves net/http/pprof on a loopback port when enabled.
package profiling

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
)

const (
	defaultPort     = 6060
	shutdownTimeout = 5 * time.Second
)

// Config enables the pprof listener.
type Config struct {
	Enabled bool `env:"ENABLE_PROFILING" yaml:"enabled"`
	Port    int  `env:"PPROF_PORT"       yaml:"port"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
}

// Handler returns a mux with the pprof endpoints under /debug/pprof/.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Start serves pprof on localhost until ctx is done. It is a no-op when
// profiling is disabled.
func Start(ctx context.Context, cfg Config, log infralogger.Logger) {
	if !cfg.Enabled {
		return
	}
	cfg.SetDefaults()

	srv := &http.Server{
		Addr:              net.JoinHostPort("localhost", strconv.Itoa(cfg.Port)),
		Handler:           Handler(),
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		log.Info("Starting pprof server", infralogger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("pprof server error", infralogger.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
