package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	infragin "github.com/jonesrussell/north-cloud/cadence/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/infrastructure/metrics"
	"github.com/jonesrussell/north-cloud/cadence/internal/api"
	"github.com/jonesrussell/north-cloud/cadence/internal/classifier"
	"github.com/jonesrussell/north-cloud/cadence/internal/config"
	"github.com/jonesrussell/north-cloud/cadence/internal/dedup"
	"github.com/jonesrussell/north-cloud/cadence/internal/fetcher"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
	"github.com/jonesrussell/north-cloud/cadence/internal/processor"
	"github.com/jonesrussell/north-cloud/cadence/internal/queue"
	"github.com/jonesrussell/north-cloud/cadence/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/cadence/internal/scheduler"
	"github.com/jonesrussell/north-cloud/cadence/internal/telemetry"
	"github.com/jonesrussell/north-cloud/cadence/internal/worker"
)

// App holds every wired component. Close releases the connections.
type App struct {
	Config    *config.Config
	Logger    infralogger.Logger
	DB        *sqlx.DB
	Redis     *redis.Client
	Repos     *Repositories
	Telemetry *telemetry.Provider

	DedupStore *dedup.FailoverStore
	Gate       *dedup.Gate
	Queue      *queue.Queue
	Classifier *classifier.Classifier
	Activity   *ingest.Activity
	Sink       *worker.Sink
	Scheduler  *scheduler.Scheduler
}

// New loads configuration and wires the application.
func New(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, repos, err := SetupDatabase(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	client, err := SetupRedis(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Redis:     client,
		Repos:     repos,
		Telemetry: telemetry.NewProvider(reg),
	}
	if wireErr := app.wire(); wireErr != nil {
		app.Close()
		return nil, wireErr
	}
	return app, nil
}

func (a *App) wire() error {
	cfg := a.Config

	a.DedupStore = dedup.NewFailoverStore(
		dedup.NewRedisStore(a.Redis),
		func() dedup.Store { return dedup.NewMemoryStore() },
		a.Logger,
	)
	a.Gate = dedup.NewGate(a.DedupStore, a.Logger)
	a.Queue = queue.New(a.Redis, a.Logger)
	a.Classifier = classifier.New()

	a.Activity = ingest.NewActivity(ingest.Dependencies{
		Agencies:  a.Repos.Agencies,
		Feeds:     a.Repos.Feeds,
		Runs:      a.Repos.Runs,
		Fetchers:  fetcher.NewDefaultRegistry(nil, cfg.Fetch, a.Logger),
		Limiter:   ratelimit.New(a.Redis, cfg.RateLimit, a.Logger),
		Gate:      a.Gate,
		Queue:     a.Queue,
		Processor: processor.NewBatchProcessor(a.Classifier, cfg.Pipeline.Concurrency, a.Logger),
		Telemetry: a.Telemetry,
		Logger:    a.Logger,
	}, ingest.WithGrace(cfg.Pipeline.AdmitGrace))

	a.Sink = worker.NewSink(a.Queue, a.Repos.Documents, a.DedupStore, a.Telemetry, cfg.Sink, a.Logger)

	sch, err := scheduler.New(a.Repos.Agencies, a.Activity, a.Queue, a.Telemetry, cfg.Scheduler, a.Logger)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	a.Scheduler = sch
	return nil
}

// Server builds the ops HTTP server.
func (a *App) Server() *infragin.Server {
	handler := api.NewHandler(a.Repos.Health, a.Queue, a.Activity, a.Classifier, a.Logger)

	return api.NewServer(handler, a.Config.Server, api.ServerOptions{
		ServiceName: a.Config.Service.Name,
		Version:     a.Config.Service.Version,
		Debug:       a.Config.Logging.Development,
		Metrics:     a.Telemetry.Handler(),
		Middleware: []gin.HandlerFunc{
			metrics.NewHTTPMetrics("cadence", a.Telemetry.Registerer()).Middleware(),
		},
		Checks: map[string]infragin.HealthChecker{
			"database": infragin.PingChecker(a.DB.PingContext, true),
			"redis": infragin.PingChecker(func(ctx context.Context) error {
				return a.Redis.Ping(ctx).Err()
			}, false),
			"dedup": func(context.Context) infragin.CheckResult {
				if a.DedupStore.Degraded() {
					return infragin.CheckResult{
						Status:  infragin.HealthStatusDegraded,
						Message: "dedup state held in process memory",
					}
				}
				return infragin.CheckResult{Status: infragin.HealthStatusHealthy}
			},
		},
	}, a.Logger)
}

// Close releases the database and Redis connections and flushes the logger.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close redis", infralogger.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Failed to close database", infralogger.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
