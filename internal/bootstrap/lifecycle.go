package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/infrastructure/profiling"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the sink, the scheduler and the HTTP server until SIGINT,
// SIGTERM, ctx cancellation or a server error.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("Starting cadence")
	profiling.Start(ctx, a.Config.Profiling, a.Logger)

	// The sink outlives the signal so documents admitted during the scheduler's
	// grace window are still flushed by Stop.
	a.Sink.Start(context.WithoutCancel(ctx))
	if err := a.Scheduler.Start(ctx); err != nil {
		a.Sink.Stop()
		return err
	}

	server := a.Server()
	errCh := server.StartAsync()

	var runErr error
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			a.Logger.Error("Server error", infralogger.Error(err))
			runErr = fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		a.Logger.Info("Shutdown signal received")
	}
	stop()

	return a.shutdown(server, runErr)
}

// shutdown stops intake first so nothing new is queued, then drains the
// queue into Postgres.
func (a *App) shutdown(server interface{ Shutdown(context.Context) error }, runErr error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("Failed to stop HTTP server", infralogger.Error(err))
	}
	a.Scheduler.Stop()
	a.Sink.Stop()

	a.Logger.Info("Cadence stopped")
	return runErr
}
