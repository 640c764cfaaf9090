package fetcher

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

var (
	alertItemSelectors = []string{
		".alert-item",
		".nixle-alert",
		".alertItem",
		".alert-card",
		"article.alert",
		"article",
	}
	alertFeedRe = regexp.MustCompile(`(?i)/(rss|feed)`)
	alertIDRe   = regexp.MustCompile(`/alert/(\w+)/?`)
)

// Alerts reads Nixle and Rave alert pages. Feed URLs are delegated to the
// RSS fetcher.
type Alerts struct {
	agencyID string
	rss      *RSS
	scraper  listingScraper
}

// NewAlerts creates an alert-page fetcher for one agency.
func NewAlerts(agencyID string, client *http.Client, cfg Config, log infralogger.Logger) *Alerts {
	cfg.SetDefaults()
	return &Alerts{
		agencyID: agencyID,
		rss:      NewRSS(agencyID, client, cfg),
		scraper:  listingScraper{client: client, cfg: cfg, logger: log},
	}
}

func (f *Alerts) Fetch(ctx context.Context, pageURL string) ([]*domain.RawDocument, error) {
	if alertFeedRe.MatchString(pageURL) {
		return f.rss.Fetch(ctx, pageURL)
	}
	// Alert pages are not paginated.
	return f.scraper.scrape(ctx, pageURL, "page", 1, f.parsePage)
}

func (f *Alerts) parsePage(page *goquery.Selection, pageURL string) ([]*domain.RawDocument, bool) {
	platform := "rave"
	if strings.Contains(pageURL, "nixle.com") {
		platform = "nixle"
	}

	var docs []*domain.RawDocument
	firstMatch(page, alertItemSelectors).Each(func(_ int, item *goquery.Selection) {
		var link *goquery.Selection
		item.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if href, _ := a.Attr("href"); alertIDRe.MatchString(href) {
				link = a
				return false
			}
			return true
		})
		if link == nil {
			link = firstOf(item, "a[href]")
		}

		alertURL := pageURL
		if link != nil {
			href, _ := link.Attr("href")
			alertURL = resolve(pageURL, href)
		}
		var alertID any
		if m := alertIDRe.FindStringSubmatch(alertURL); m != nil {
			alertID = m[1]
		}

		titleSel := firstOf(item, "h2", "h3", "h4")
		if titleSel == nil {
			titleSel = link
		}
		title := textOf(titleSel)
		body := textOf(firstOf(item, ".alert-body", ".alertBody", ".alert-content", ".alertContent", "p"))
		dateStr := dateFrom(item, "alert-date", "alertDate", "date", "published")

		doc, err := domain.NewRawDocument(
			alertURL, f.agencyID, "alert", title, titledText(title, body),
			parseDate(dateStr, listingLayouts...),
			domain.Metadata{
				"nixle_alert_id": alertID,
				"alert_url":      alertURL,
				"platform":       platform,
			},
		)
		if err == nil {
			docs = append(docs, doc)
		}
	})
	return docs, false
}
