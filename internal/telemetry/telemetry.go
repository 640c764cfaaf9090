// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for cadence.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "cadence"

// Metrics holds all cadence Prometheus metrics
type Metrics struct {
	// Scrape metrics
	ScrapesTotal     *prometheus.CounterVec
	ScrapeDuration   *prometheus.HistogramVec
	FeedErrors       *prometheus.CounterVec
	DocumentsFetched *prometheus.CounterVec
	DocumentsQueued  *prometheus.CounterVec
	Duplicates       *prometheus.CounterVec

	// Pipeline metrics
	DocumentTypes *prometheus.CounterVec
	QualityScore  prometheus.Histogram

	// Sink metrics
	DocumentsInserted prometheus.Counter
	SinkFailures      prometheus.Counter
	QueueDepth        prometheus.Gauge
	DLQDepth          prometheus.Gauge
	DLQEnqueued       prometheus.Counter

	// Dedup fallback
	DedupDegraded prometheus.Gauge
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer     trace.Tracer
	Metrics    *Metrics
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewProvider registers metrics on reg. A nil reg uses the default registry.
func NewProvider(reg *prometheus.Registry) *Provider {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	return &Provider{
		Tracer:     otel.Tracer(serviceName),
		Metrics:    initMetrics(promauto.With(registerer)),
		registerer: registerer,
		gatherer:   gatherer,
	}
}

// Registerer is where the provider's collectors live. Other collectors
// registered here are served by Handler.
func (p *Provider) Registerer() prometheus.Registerer {
	return p.registerer
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func initMetrics(f promauto.Factory) *Metrics {
	m := &Metrics{}
	initScrapeMetrics(f, m)
	initPipelineMetrics(f, m)
	initSinkMetrics(f, m)
	return m
}

func initScrapeMetrics(f promauto.Factory, m *Metrics) {
	m.ScrapesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_scrapes_total",
		Help: "Agency scrapes by platform and outcome",
	}, []string{"platform", "outcome"})

	m.ScrapeDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cadence_scrape_duration_seconds",
		Help:    "Time to scrape one agency",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"platform"})

	m.FeedErrors = f.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_feed_errors_total",
		Help: "Feeds that failed to fetch",
	}, []string{"platform"})

	m.DocumentsFetched = f.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_documents_fetched_total",
		Help: "Raw documents returned by fetchers",
	}, []string{"platform"})

	m.DocumentsQueued = f.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_documents_queued_total",
		Help: "Novel documents pushed to the processing queue",
	}, []string{"platform"})

	m.Duplicates = f.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_documents_duplicate_total",
		Help: "Documents rejected by the dedup gate",
	}, []string{"platform"})
}

func initPipelineMetrics(f promauto.Factory, m *Metrics) {
	m.DocumentTypes = f.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_document_type_total",
		Help: "Queued documents by classified type",
	}, []string{"document_type"})

	m.QualityScore = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "cadence_quality_score",
		Help:    "Quality score of queued documents",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})
}

func initSinkMetrics(f promauto.Factory, m *Metrics) {
	m.DocumentsInserted = f.NewCounter(prometheus.CounterOpts{
		Name: "cadence_documents_inserted_total",
		Help: "Documents newly written to Postgres",
	})

	m.SinkFailures = f.NewCounter(prometheus.CounterOpts{
		Name: "cadence_sink_failures_total",
		Help: "Bulk inserts that failed after retries",
	})

	m.QueueDepth = f.NewGauge(prometheus.GaugeOpts{
		Name: "cadence_queue_depth",
		Help: "Documents waiting in the processing queue",
	})

	m.DLQDepth = f.NewGauge(prometheus.GaugeOpts{
		Name: "cadence_dlq_depth",
		Help: "Entries in the dead-letter queue",
	})

	m.DLQEnqueued = f.NewCounter(prometheus.CounterOpts{
		Name: "cadence_dlq_enqueued_total",
		Help: "Agency scrapes sent to the dead-letter queue",
	})

	m.DedupDegraded = f.NewGauge(prometheus.GaugeOpts{
		Name: "cadence_dedup_degraded",
		Help: "1 when the dedup gate is using its in-process fallback",
	})
}

// RecordScrape records the outcome of one agency scrape.
func (p *Provider) RecordScrape(_ context.Context, platform, outcome string, duration time.Duration) {
	p.Metrics.ScrapesTotal.WithLabelValues(platform, outcome).Inc()
	p.Metrics.ScrapeDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordFeedError counts a failed feed fetch.
func (p *Provider) RecordFeedError(_ context.Context, platform string) {
	p.Metrics.FeedErrors.WithLabelValues(platform).Inc()
}

// RecordFetched counts raw documents returned by a fetcher.
func (p *Provider) RecordFetched(_ context.Context, platform string, n int) {
	p.Metrics.DocumentsFetched.WithLabelValues(platform).Add(float64(n))
}

// RecordQueued records one admitted document.
func (p *Provider) RecordQueued(_ context.Context, platform, documentType string, quality int) {
	p.Metrics.DocumentsQueued.WithLabelValues(platform).Inc()
	p.Metrics.DocumentTypes.WithLabelValues(documentType).Inc()
	p.Metrics.QualityScore.Observe(float64(quality))
}

// RecordDuplicate records one document rejected by the dedup gate.
func (p *Provider) RecordDuplicate(_ context.Context, platform string) {
	p.Metrics.Duplicates.WithLabelValues(platform).Inc()
}

// RecordInserted records a sink flush.
func (p *Provider) RecordInserted(_ context.Context, n int64) {
	p.Metrics.DocumentsInserted.Add(float64(n))
}

// RecordSinkFailure records a flush that exhausted its retries.
func (p *Provider) RecordSinkFailure(_ context.Context) {
	p.Metrics.SinkFailures.Inc()
}

// RecordDLQEnqueue records an agency scrape given up on.
func (p *Provider) RecordDLQEnqueue(_ context.Context) {
	p.Metrics.DLQEnqueued.Inc()
	p.Metrics.DLQDepth.Inc()
}

// SetQueueDepth sets the current queue depth
func (p *Provider) SetQueueDepth(depth int64) {
	p.Metrics.QueueDepth.Set(float64(depth))
}

// SetDLQDepth sets the current DLQ depth
func (p *Provider) SetDLQDepth(depth int64) {
	p.Metrics.DLQDepth.Set(float64(depth))
}

// SetDedupDegraded reflects the dedup gate's fallback state.
func (p *Provider) SetDedupDegraded(degraded bool) {
	v := 0.0
	if degraded {
		v = 1
	}
	p.Metrics.DedupDegraded.Set(v)
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
