package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// pageParser extracts the documents on one listing page and reports whether
// the page links to a next page.
type pageParser func(page *goquery.Selection, pageURL string) (docs []*domain.RawDocument, hasNext bool)

var nextTextRe = regexp.MustCompile(`(?i)\bnext\b`)

// listingScraper walks a paginated HTML listing with a colly collector.
type listingScraper struct {
	client *http.Client
	cfg    Config
	logger infralogger.Logger
}

func (s *listingScraper) collector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.SetClient(s.client)
	return c
}

// scrape visits base, then ?<param>=2.. up to maxPages, stopping at the first
// empty page or the first page without a next link. A failure on the first
// page is returned; later failures end pagination.
func (s *listingScraper) scrape(
	ctx context.Context,
	base, param string,
	maxPages int,
	parse pageParser,
) ([]*domain.RawDocument, error) {
	c := s.collector(ctx)

	var (
		pageDocs []*domain.RawDocument
		hasNext  bool
	)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		pageDocs, hasNext = parse(e.DOM, e.Request.URL.String())
	})

	var all []*domain.RawDocument
	for page := 1; page <= maxPages; page++ {
		pageDocs, hasNext = nil, false
		u := pageURL(base, param, page)

		if err := c.Visit(u); err != nil {
			if page == 1 {
				return nil, fmt.Errorf("visit %s: %w", u, err)
			}
			s.logger.Debug("Listing pagination stopped",
				infralogger.String("page_url", u),
				infralogger.Error(err),
			)
			break
		}
		if len(pageDocs) == 0 {
			break
		}
		all = append(all, pageDocs...)
		if !hasNext {
			break
		}
	}
	return all, nil
}

// firstMatch returns the result of the first selector that matches anything.
func firstMatch(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return root.Find("__none__")
}

// firstOf returns the first element matched by any selector, in selector order.
func firstOf(root *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

// hasNextLink looks for rel=next, a link labelled "next", or an enabled
// bootstrap li.next.
func hasNextLink(page *goquery.Selection) bool {
	if page.Find(`a[rel="next"]`).Length() > 0 {
		return true
	}
	found := false
	page.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if nextTextRe.MatchString(a.Text()) {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}
	li := page.Find("li.next").First()
	return li.Length() > 0 && !li.HasClass("disabled")
}

// textOf is the collapsed text of sel, or "" when sel is nil.
func textOf(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	return collapse(sel.Text())
}

// dateFrom reads a date string from a <time> tag or the first matching class.
func dateFrom(item *goquery.Selection, classes ...string) string {
	if t := item.Find("time").First(); t.Length() > 0 {
		if dt, ok := t.Attr("datetime"); ok && dt != "" {
			return dt
		}
		if s := collapse(t.Text()); s != "" {
			return s
		}
	}
	for _, cls := range classes {
		if el := item.Find("." + cls).First(); el.Length() > 0 {
			return collapse(el.Text())
		}
	}
	return ""
}

// titledText joins a title and body the way listing items are stored.
func titledText(title, body string) string {
	if title == "" {
		return collapse(body)
	}
	return collapse(title + ". " + body)
}
