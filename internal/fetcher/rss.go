package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// RSS reads RSS, Atom and JSON feeds.
type RSS struct {
	agencyID string
	client   *http.Client
	cfg      Config
}

// NewRSS creates an RSS fetcher for one agency.
func NewRSS(agencyID string, client *http.Client, cfg Config) *RSS {
	cfg.SetDefaults()
	return &RSS{agencyID: agencyID, client: client, cfg: cfg}
}

func (f *RSS) Fetch(ctx context.Context, feedURL string) ([]*domain.RawDocument, error) {
	body, err := getBody(ctx, f.client, feedURL, f.cfg.UserAgent)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	hint := feedHint(feed.Title)
	docs := make([]*domain.RawDocument, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.Link
		if link == "" {
			link = feedURL
		}
		text := item.Content
		if text == "" {
			text = item.Description
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}

		doc, docErr := domain.NewRawDocument(
			link, f.agencyID, hint, item.Title, collapse(text), published,
			domain.Metadata{"feed_url": feedURL, "feed_title": feed.Title},
		)
		if docErr != nil {
			return nil, docErr
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func feedHint(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "press"):
		return "press_release"
	case strings.Contains(lower, "arrest"):
		return "arrest_log"
	default:
		return "activity_feed"
	}
}
