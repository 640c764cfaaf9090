package ingest_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/classifier"
	"github.com/jonesrussell/north-cloud/cadence/internal/dedup"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/fetcher"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
	"github.com/jonesrussell/north-cloud/cadence/internal/processor"
	"github.com/jonesrussell/north-cloud/cadence/internal/queue"
	"github.com/jonesrussell/north-cloud/cadence/internal/telemetry"
)

var errNotFound = errors.New("agency not found")

type fakeAgencies map[string]*domain.Agency

func (f fakeAgencies) GetWithFeeds(_ context.Context, id string) (*domain.Agency, error) {
	a, ok := f[id]
	if !ok {
		return nil, errNotFound
	}
	return a, nil
}

type feedCall struct {
	feedID  string
	success bool
	message string
}

type recorder struct {
	mu    sync.Mutex
	feeds []feedCall
	runs  []domain.ParseRun
}

func (r *recorder) RecordSuccess(_ context.Context, feedID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds = append(r.feeds, feedCall{feedID: feedID, success: true})
	return nil
}

func (r *recorder) RecordFailure(_ context.Context, feedID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds = append(r.feeds, feedCall{feedID: feedID, message: message})
	return nil
}

func (r *recorder) Record(ctx context.Context, run *domain.ParseRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

type result struct {
	docs []*domain.RawDocument
	err  error
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]result
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]*domain.RawDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	r := f.results[url]
	return r.docs, r.err
}

type fakeSource struct{ f fetcher.Fetcher }

func (s fakeSource) For(*domain.Agency) (fetcher.Fetcher, error) { return s.f, nil }

type noWait struct{}

func (noWait) Wait(context.Context, string) error { return nil }

type hookPusher struct {
	next   ingest.Pusher
	onPush func()
	err    error
}

func (p *hookPusher) Push(ctx context.Context, doc *domain.CanonicalDocument) error {
	if p.onPush != nil {
		p.onPush()
	}
	if p.err != nil {
		return p.err
	}
	return p.next.Push(ctx, doc)
}

type harness struct {
	activity *ingest.Activity
	rec      *recorder
	fetch    *fakeFetcher
	gate     *dedup.Gate
	queue    *queue.Queue
	pusher   *hookPusher
}

func newHarness(t *testing.T, agencies fakeAgencies, results map[string]result, source ingest.FetcherSource) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := infralogger.NewNop()
	h := &harness{
		rec:   &recorder{},
		fetch: &fakeFetcher{results: results},
		gate:  dedup.NewGate(dedup.NewMemoryStore(), log),
		queue: queue.New(client, log),
	}
	h.pusher = &hookPusher{next: h.queue}
	if source == nil {
		source = fakeSource{f: h.fetch}
	}

	h.activity = ingest.NewActivity(ingest.Dependencies{
		Agencies:  agencies,
		Feeds:     h.rec,
		Runs:      h.rec,
		Fetchers:  source,
		Limiter:   noWait{},
		Gate:      h.gate,
		Queue:     h.pusher,
		Processor: processor.NewBatchProcessor(classifier.New(), 2, log),
		Telemetry: telemetry.NewProvider(prometheus.NewRegistry()),
		Logger:    log,
	})
	return h
}

func raw(t *testing.T, url, text string) *domain.RawDocument {
	t.Helper()

	d, err := domain.NewRawDocument(url, "oakland-pd", "press_release", "Update", text, nil, nil)
	require.NoError(t, err)
	return d
}

func agency(platform string, feeds ...domain.Feed) *domain.Agency {
	return &domain.Agency{
		ID:              "oakland-pd",
		CanonicalName:   "Oakland Police Department",
		PlatformType:    sql.NullString{String: platform, Valid: platform != ""},
		ScrapeFrequency: domain.FrequencyHourly,
		Feeds:           feeds,
	}
}

func feed(id, url string, active bool) domain.Feed {
	return domain.Feed{ID: id, AgencyID: "oakland-pd", URL: url, Active: active}
}

func TestScrapeAgency_AdmitsNovelDocumentsInOrder(t *testing.T) {
	t.Parallel()

	const newsURL = "https://oakland.gov/news"
	const alertsURL = "https://oakland.gov/alerts"

	first := raw(t, newsURL+"/1", "<p>Arrest made at 100 Main St on January 5, 2026.</p>")
	second := raw(t, newsURL+"/2", "<p>Road closure on Broadway for the parade.</p>")
	repeat := raw(t, newsURL+"/1", "<p>Arrest made at 100 Main St on January 5, 2026.</p>")

	h := newHarness(t,
		fakeAgencies{"oakland-pd": agency("civicplus",
			feed("f-news", newsURL, true),
			feed("f-alerts", alertsURL, true),
			feed("f-old", "https://oakland.gov/old", false),
			feed("f-bad", "ftp://oakland.gov/files", true),
		)},
		map[string]result{
			newsURL:   {docs: []*domain.RawDocument{first, second, repeat}},
			alertsURL: {err: errors.New("status 503")},
		},
		nil,
	)
	ctx := context.Background()

	summary, err := h.activity.ScrapeAgency(ctx, "oakland-pd")
	require.NoError(t, err)

	assert.Equal(t, "civicplus", summary.Platform)
	assert.Equal(t, 1, summary.FeedsScraped)
	assert.Equal(t, 1, summary.FeedsSkipped)
	assert.Equal(t, 3, summary.DocsFetched)
	assert.Equal(t, 2, summary.DocsPushed)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, []string{"status 503"}, summary.Errors)
	assert.ElementsMatch(t, []string{newsURL, alertsURL}, h.fetch.calls)

	queued, err := h.queue.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, first.URL, queued[0].URL)
	assert.Equal(t, second.URL, queued[1].URL)
	assert.Equal(t, domain.ContentHash(first.URL, first.RawText), queued[0].DocHash)

	dup, err := h.gate.IsDuplicate(ctx, second)
	require.NoError(t, err)
	assert.True(t, dup)

	recent, err := h.gate.URLRecentlyFetched(ctx, newsURL, time.Hour)
	require.NoError(t, err)
	assert.True(t, recent)
	recent, err = h.gate.URLRecentlyFetched(ctx, alertsURL, time.Hour)
	require.NoError(t, err)
	assert.False(t, recent)

	assert.ElementsMatch(t, []feedCall{
		{feedID: "f-news", success: true},
		{feedID: "f-alerts", message: "status 503"},
	}, h.rec.feeds)

	require.Len(t, h.rec.runs, 1)
	run := h.rec.runs[0]
	assert.Equal(t, "oakland-pd", run.AgencyID)
	assert.Equal(t, 2, run.DocsFetched)
	assert.Equal(t, 1, run.FeedsScraped)
	assert.Equal(t, 1, run.ErrorCount)
	assert.Equal(t, "civicplus", run.PlatformType)
}

func TestScrapeAgency_SkipsRecentlyFetchedFeed(t *testing.T) {
	t.Parallel()

	const newsURL = "https://oakland.gov/news"
	h := newHarness(t,
		fakeAgencies{"oakland-pd": agency("rss", feed("f-news", newsURL, true))},
		map[string]result{newsURL: {docs: []*domain.RawDocument{raw(t, newsURL+"/1", "Body text")}}},
		nil,
	)
	ctx := context.Background()

	_, err := h.activity.ScrapeAgency(ctx, "oakland-pd")
	require.NoError(t, err)

	summary, err := h.activity.ScrapeAgency(ctx, "oakland-pd")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FeedsScraped)
	assert.Equal(t, 1, summary.FeedsSkipped)
	assert.Len(t, h.fetch.calls, 1)

	require.Len(t, h.rec.runs, 2)
	assert.Equal(t, 0, h.rec.runs[1].DocsFetched)
}

func TestScrapeAgency_AgencyNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeAgencies{}, nil, nil)

	_, err := h.activity.ScrapeAgency(context.Background(), "ghost")
	require.ErrorIs(t, err, errNotFound)
	assert.Empty(t, h.rec.runs)
}

func TestScrapeAgency_SkipsUnscrapableAgencies(t *testing.T) {
	t.Parallel()

	registry := fetcher.NewDefaultRegistry(http.DefaultClient, fetcher.Config{}, infralogger.NewNop())

	tests := []struct {
		name     string
		platform string
	}{
		{name: "no platform type", platform: ""},
		{name: "platform without fetcher", platform: "pdf"},
		{name: "crimemapping without portal id", platform: "crimemapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t,
				fakeAgencies{"oakland-pd": agency(tt.platform, feed("f", "https://oakland.gov/x", true))},
				nil,
				registry,
			)

			summary, err := h.activity.ScrapeAgency(context.Background(), "oakland-pd")
			require.NoError(t, err)
			assert.NotEmpty(t, summary.Skipped)
			assert.Empty(t, h.rec.runs)
		})
	}
}

func TestScrapeAgency_PushFailureDoesNotMarkSeen(t *testing.T) {
	t.Parallel()

	const newsURL = "https://oakland.gov/news"
	doc := raw(t, newsURL+"/1", "Body text")
	h := newHarness(t,
		fakeAgencies{"oakland-pd": agency("rss", feed("f-news", newsURL, true))},
		map[string]result{newsURL: {docs: []*domain.RawDocument{doc}}},
		nil,
	)
	h.pusher.err = errors.New("redis: connection refused")
	ctx := context.Background()

	summary, err := h.activity.ScrapeAgency(ctx, "oakland-pd")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.DocsPushed)
	require.Len(t, summary.Errors, 1)

	dup, err := h.gate.IsDuplicate(ctx, doc)
	require.NoError(t, err)
	assert.False(t, dup)

	recent, err := h.gate.URLRecentlyFetched(ctx, newsURL, time.Hour)
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestScrapeAgency_AdmitsPreparedDocumentsAfterCancel(t *testing.T) {
	t.Parallel()

	const newsURL = "https://oakland.gov/news"
	const laterURL = "https://oakland.gov/later"
	docs := []*domain.RawDocument{
		raw(t, newsURL+"/1", "First body"),
		raw(t, newsURL+"/2", "Second body"),
		raw(t, newsURL+"/3", "Third body"),
	}
	h := newHarness(t,
		fakeAgencies{"oakland-pd": agency("rss",
			feed("f-news", newsURL, true),
			feed("f-later", laterURL, true),
		)},
		map[string]result{newsURL: {docs: docs}},
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.pusher.onPush = cancel

	summary, err := h.activity.ScrapeAgency(ctx, "oakland-pd")
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 3, summary.DocsPushed)
	assert.Equal(t, []string{newsURL}, h.fetch.calls)

	depth, err := h.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)

	require.Len(t, h.rec.runs, 1)
	assert.Equal(t, 3, h.rec.runs[0].DocsFetched)
}

func TestValidateFeedURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://oakland.gov/news", false},
		{"http://oakland.gov", false},
		{"ftp://oakland.gov/files", true},
		{"/relative/path", true},
		{"", true},
		{"https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			err := ingest.ValidateFeedURL(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, ingest.ErrInvalidFeedURL)
				return
			}
			require.NoError(t, err)
		})
	}
}
