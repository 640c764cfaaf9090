package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// Article containers, newest CivicPlus layout first.
var civicPlusItemSelectors = []string{
	"li.list-group-item",
	".civicAlert",
	".alertItem",
	"#fa_newslist .fa_rowcmp",
	"article",
}

// CivicPlus scrapes CivicPlus news-flash listings.
type CivicPlus struct {
	agencyID string
	scraper  listingScraper
}

// NewCivicPlus creates a CivicPlus fetcher for one agency.
func NewCivicPlus(agencyID string, client *http.Client, cfg Config, log infralogger.Logger) *CivicPlus {
	cfg.SetDefaults()
	return &CivicPlus{
		agencyID: agencyID,
		scraper:  listingScraper{client: client, cfg: cfg, logger: log},
	}
}

func (f *CivicPlus) Fetch(ctx context.Context, listURL string) ([]*domain.RawDocument, error) {
	return f.scraper.scrape(ctx, listURL, "Page", f.scraper.cfg.MaxPages, f.parsePage)
}

func (f *CivicPlus) parsePage(page *goquery.Selection, pageURL string) ([]*domain.RawDocument, bool) {
	hint := hintFromURL(pageURL)
	var docs []*domain.RawDocument

	firstMatch(page, civicPlusItemSelectors).Each(func(_ int, item *goquery.Selection) {
		link := firstOf(item, "a.article-title-link", "a[href]")
		docURL := pageURL
		if link != nil {
			if href, ok := link.Attr("href"); ok && href != "" {
				docURL = resolve(pageURL, href)
			}
		}

		titleSel := firstOf(item, "h2", "h3", "h4")
		if titleSel == nil {
			titleSel = link
		}
		title := textOf(titleSel)
		body := textOf(firstOf(item, ".article-preview", ".alertContent", "p"))

		dateStr := textOf(firstOf(item, ".article-list-footer .fst-italic"))
		if dateStr == "" {
			dateStr = dateFrom(item, "date", "alertDate")
		}

		doc, err := domain.NewRawDocument(
			docURL, f.agencyID, hint, title, titledText(title, body),
			parseListingDate(dateStr),
			domain.Metadata{"page_url": pageURL},
		)
		if err == nil {
			docs = append(docs, doc)
		}
	})

	if len(docs) == 0 {
		if doc := f.alertDetail(page, pageURL, hint); doc != nil {
			return []*domain.RawDocument{doc}, false
		}
	}

	return docs, hasNextLink(page)
}

// alertDetail handles a list URL that points at a single alert
// (CivicAlerts.aspx?AID=n) by extracting the article body with readability.
func (f *CivicPlus) alertDetail(page *goquery.Selection, pageURL, hint string) *domain.RawDocument {
	u, err := url.Parse(pageURL)
	if err != nil || u.Query().Get("AID") == "" {
		return nil
	}

	html, err := goquery.OuterHtml(page)
	if err != nil || strings.TrimSpace(html) == "" {
		return nil
	}

	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return nil
	}

	title := collapse(article.Title)
	body := collapse(article.TextContent)
	if body == "" {
		return nil
	}

	doc, err := domain.NewRawDocument(
		pageURL, f.agencyID, hint, title, titledText(title, body), nil,
		domain.Metadata{"page_url": pageURL, "extraction": "readability"},
	)
	if err != nil {
		return nil
	}
	return doc
}
