// Package ingest scrapes one agency: fetch every active feed, clean and
// classify what comes back, and admit novel documents to the processing queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/fetcher"
	"github.com/jonesrussell/north-cloud/cadence/internal/processor"
	"github.com/jonesrussell/north-cloud/cadence/internal/telemetry"
)

// ErrInvalidFeedURL is returned for feed URLs that are not absolute http(s) URLs.
var ErrInvalidFeedURL = errors.New("invalid feed url")

const defaultGrace = 30 * time.Second

// AgencyLoader loads an agency and its feeds.
type AgencyLoader interface {
	GetWithFeeds(ctx context.Context, agencyID string) (*domain.Agency, error)
}

// FeedRecorder stores per-feed outcomes.
type FeedRecorder interface {
	RecordSuccess(ctx context.Context, feedID string, at time.Time) error
	RecordFailure(ctx context.Context, feedID, message string) error
}

// RunRecorder stores the per-agency parse run.
type RunRecorder interface {
	Record(ctx context.Context, run *domain.ParseRun) error
}

// FetcherSource picks the fetcher for an agency.
type FetcherSource interface {
	For(agency *domain.Agency) (fetcher.Fetcher, error)
}

// Limiter spaces out requests to the same host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Gate is the dedup admission policy.
type Gate interface {
	IsDuplicate(ctx context.Context, doc *domain.RawDocument) (bool, error)
	MarkSeen(ctx context.Context, doc *domain.RawDocument) error
	URLRecentlyFetched(ctx context.Context, url string, window time.Duration) (bool, error)
	MarkURLFetched(ctx context.Context, url string, window time.Duration) error
}

// Pusher hands admitted documents to the persistence sink.
type Pusher interface {
	Push(ctx context.Context, doc *domain.CanonicalDocument) error
}

// Dependencies are the collaborators of an Activity.
type Dependencies struct {
	Agencies  AgencyLoader
	Feeds     FeedRecorder
	Runs      RunRecorder
	Fetchers  FetcherSource
	Limiter   Limiter
	Gate      Gate
	Queue     Pusher
	Processor *processor.BatchProcessor
	Telemetry *telemetry.Provider
	Logger    infralogger.Logger
}

// Summary is the outcome of one ScrapeAgency call.
type Summary struct {
	AgencyID     string   `json:"agency_id"`
	Platform     string   `json:"platform"`
	FeedsScraped int      `json:"feeds_scraped"`
	FeedsSkipped int      `json:"feeds_skipped"`
	DocsFetched  int      `json:"docs_fetched"`
	DocsPushed   int      `json:"docs_pushed"`
	Duplicates   int      `json:"duplicates"`
	Errors       []string `json:"errors"`
	// Skipped is set when the agency could not be scraped at all.
	Skipped string `json:"skipped,omitempty"`
}

// Activity scrapes agencies.
type Activity struct {
	deps  Dependencies
	grace time.Duration
	now   func() time.Time
}

// Option configures an Activity.
type Option func(*Activity)

// WithGrace sets how long admission and bookkeeping may continue after the
// scrape context has ended.
func WithGrace(d time.Duration) Option {
	return func(a *Activity) {
		if d > 0 {
			a.grace = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Activity) { a.now = now }
}

// NewActivity creates an Activity.
func NewActivity(deps Dependencies, opts ...Option) *Activity {
	a := &Activity{deps: deps, grace: defaultGrace, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ScrapeAgency scrapes every active feed of agencyID. Per-feed failures are
// collected in the Summary; an error is returned only when the agency cannot
// be loaded or ctx ends before all feeds were attempted.
func (a *Activity) ScrapeAgency(ctx context.Context, agencyID string) (Summary, error) {
	start := a.now()
	summary := Summary{AgencyID: agencyID, Errors: []string{}}
	log := a.deps.Logger.With(infralogger.AgencyID(agencyID))

	ctx, span := a.deps.Telemetry.StartSpan(ctx, "ingest.scrape_agency", attribute.String("agency_id", agencyID))
	defer span.End()

	agency, err := a.deps.Agencies.GetWithFeeds(ctx, agencyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load agency")
		return summary, fmt.Errorf("load agency %s: %w", agencyID, err)
	}

	if !agency.PlatformType.Valid {
		log.Warn("Agency has no platform_type, skipping")
		summary.Skipped = "no platform_type"
		return summary, nil
	}
	platform := agency.Platform()
	summary.Platform = agency.PlatformType.String
	log = log.With(infralogger.Platform(summary.Platform))
	span.SetAttributes(attribute.String("platform", summary.Platform))

	f, err := a.deps.Fetchers.For(agency)
	if err != nil {
		if errors.Is(err, fetcher.ErrNoFetcher) || errors.Is(err, fetcher.ErrMissingCrimeMappingID) {
			log.Warn("No fetcher for agency, skipping", infralogger.Error(err))
			summary.Skipped = err.Error()
			return summary, nil
		}
		return summary, fmt.Errorf("build fetcher for %s: %w", agencyID, err)
	}

	window := agency.ScrapeFrequency.Window()
	for _, feed := range agency.ActiveFeeds() {
		if ctx.Err() != nil {
			break
		}
		a.scrapeFeed(ctx, log, f, feed, platform, window, &summary)
	}

	a.recordRun(ctx, log, agency, &summary)

	outcome := "success"
	switch {
	case ctx.Err() != nil:
		outcome = "timeout"
	case len(summary.Errors) > 0:
		outcome = "partial"
	}
	a.deps.Telemetry.RecordScrape(ctx, summary.Platform, outcome, a.now().Sub(start))

	log.Info("Agency scraped",
		infralogger.Int("feeds_scraped", summary.FeedsScraped),
		infralogger.Int("feeds_skipped", summary.FeedsSkipped),
		infralogger.Int("docs_fetched", summary.DocsFetched),
		infralogger.Int("docs_pushed", summary.DocsPushed),
		infralogger.Int("duplicates", summary.Duplicates),
		infralogger.Int("error_count", len(summary.Errors)),
		infralogger.Duration("duration", a.now().Sub(start)),
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		span.SetStatus(codes.Error, "scrape interrupted")
		return summary, fmt.Errorf("scrape %s interrupted: %w", agencyID, ctxErr)
	}
	return summary, nil
}

func (a *Activity) scrapeFeed(
	ctx context.Context,
	log infralogger.Logger,
	f fetcher.Fetcher,
	feed domain.Feed,
	platform domain.PlatformKind,
	window time.Duration,
	summary *Summary,
) {
	log = log.With(infralogger.FeedURL(feed.URL))

	if err := ValidateFeedURL(feed.URL); err != nil {
		log.Debug("Skipping feed with invalid URL", infralogger.Error(err))
		summary.FeedsSkipped++
		return
	}

	recent, err := a.deps.Gate.URLRecentlyFetched(ctx, feed.URL, window)
	if err != nil {
		log.Warn("URL freshness check failed, fetching anyway", infralogger.Error(err))
	}
	if recent {
		log.Debug("Skipping recently fetched feed")
		summary.FeedsSkipped++
		return
	}

	if waitErr := a.deps.Limiter.Wait(ctx, feed.URL); waitErr != nil {
		return
	}

	docs, err := f.Fetch(ctx, feed.URL)
	if err != nil {
		a.feedFailed(ctx, log, feed, platform, err, summary)
		return
	}
	summary.FeedsScraped++
	summary.DocsFetched += len(docs)
	a.deps.Telemetry.RecordFetched(ctx, platform.String(), len(docs))

	prepared, procErr := a.deps.Processor.Process(ctx, docs, platform)

	admitCtx, cancel := a.graceContext(ctx)
	defer cancel()

	if admitErr := a.admit(admitCtx, log, prepared, platform, summary); admitErr != nil {
		a.feedFailed(admitCtx, log, feed, platform, admitErr, summary)
		return
	}
	if procErr != nil {
		log.Warn("Feed interrupted, admitted prepared documents only",
			infralogger.Int("prepared", len(prepared)),
			infralogger.Int("fetched", len(docs)),
		)
		return
	}

	if markErr := a.deps.Gate.MarkURLFetched(admitCtx, feed.URL, window); markErr != nil {
		log.Warn("Failed to mark feed URL fetched", infralogger.Error(markErr))
	}
	if recErr := a.deps.Feeds.RecordSuccess(admitCtx, feed.ID, a.now()); recErr != nil {
		log.Error("Failed to record feed success", infralogger.Error(recErr))
	}
}

// admit runs the dedup gate over prepared in fetch order. mark_seen follows
// a successful push only. A push failure stops admission for the feed.
func (a *Activity) admit(
	ctx context.Context,
	log infralogger.Logger,
	prepared []*processor.Prepared,
	platform domain.PlatformKind,
	summary *Summary,
) error {
	for _, p := range prepared {
		dup, err := a.deps.Gate.IsDuplicate(ctx, p.Raw)
		if err != nil {
			log.Warn("Dedup check failed, document held back",
				infralogger.String("url", p.Raw.URL), infralogger.Error(err))
			continue
		}
		if dup {
			summary.Duplicates++
			a.deps.Telemetry.RecordDuplicate(ctx, platform.String())
			continue
		}

		if pushErr := a.deps.Queue.Push(ctx, p.Canonical); pushErr != nil {
			return fmt.Errorf("queue document: %w", pushErr)
		}
		if markErr := a.deps.Gate.MarkSeen(ctx, p.Raw); markErr != nil {
			log.Warn("Failed to mark document seen",
				infralogger.String("doc_hash", p.Canonical.DocHash), infralogger.Error(markErr))
		}
		summary.DocsPushed++
		a.deps.Telemetry.RecordQueued(ctx, platform.String(),
			string(p.Classification.DocumentType), p.Cleaning.QualityScore)
	}
	return nil
}

func (a *Activity) feedFailed(
	ctx context.Context,
	log infralogger.Logger,
	feed domain.Feed,
	platform domain.PlatformKind,
	cause error,
	summary *Summary,
) {
	log.Error("Error scraping feed", infralogger.Error(cause))
	summary.Errors = append(summary.Errors, cause.Error())
	a.deps.Telemetry.RecordFeedError(ctx, platform.String())

	recCtx, cancel := a.graceContext(ctx)
	defer cancel()
	if err := a.deps.Feeds.RecordFailure(recCtx, feed.ID, cause.Error()); err != nil {
		log.Error("Failed to record feed failure", infralogger.Error(err))
	}
}

func (a *Activity) recordRun(ctx context.Context, log infralogger.Logger, agency *domain.Agency, summary *Summary) {
	recCtx, cancel := a.graceContext(ctx)
	defer cancel()

	run := &domain.ParseRun{
		AgencyID:     agency.ID,
		RunAt:        a.now().UTC(),
		DocsFetched:  summary.DocsPushed,
		FeedsScraped: summary.FeedsScraped,
		ErrorCount:   len(summary.Errors),
		PlatformType: agency.PlatformType.String,
	}
	if err := a.deps.Runs.Record(recCtx, run); err != nil {
		log.Error("Failed to record parse run", infralogger.Error(err))
	}
}

// graceContext detaches from ctx's cancellation but keeps its values, bounded
// by the grace period.
func (a *Activity) graceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.grace)
}

// ValidateFeedURL accepts absolute http and https URLs only.
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFeedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidFeedURL, raw)
	}
	return nil
}
