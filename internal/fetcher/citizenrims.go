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

const citizenRIMSMaxPages = 3

var (
	citizenRIMSRowSelectors = []string{
		"table.table tbody tr",
		"table.incidents tbody tr",
		"table#incidentTable tbody tr",
		"table#callTable tbody tr",
		".incident-row",
		".call-row",
		"table tbody tr",
	}
	rowDateRe    = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2}`)
	rowAddressRe = regexp.MustCompile(`(?i)\d+\s+[\p{L}\p{N}_]+\s+(st|ave|blvd|dr|rd|ln|way|ct|pl)\b`)

	citizenRIMSLayouts = []string{
		"1/2/2006 15:04",
		"1/2/2006 3:04 PM",
		"1/2/2006 3:04:05 PM",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"1/2/2006",
	}
)

// CitizenRIMS scrapes calls-for-service tables on CitizenRIMS portals.
type CitizenRIMS struct {
	agencyID string
	scraper  listingScraper
}

// NewCitizenRIMS creates a CitizenRIMS fetcher for one agency.
func NewCitizenRIMS(agencyID string, client *http.Client, cfg Config, log infralogger.Logger) *CitizenRIMS {
	cfg.SetDefaults()
	return &CitizenRIMS{
		agencyID: agencyID,
		scraper:  listingScraper{client: client, cfg: cfg, logger: log},
	}
}

func (f *CitizenRIMS) Fetch(ctx context.Context, portalURL string) ([]*domain.RawDocument, error) {
	pages := min(f.scraper.cfg.MaxPages, citizenRIMSMaxPages)
	return f.scraper.scrape(ctx, portalURL, "page", pages, f.parsePage)
}

func (f *CitizenRIMS) parsePage(page *goquery.Selection, pageURL string) ([]*domain.RawDocument, bool) {
	var rows []*goquery.Selection
	for _, sel := range citizenRIMSRowSelectors {
		rows = rows[:0]
		page.Find(sel).Each(func(_ int, row *goquery.Selection) {
			if row.Find("td").Length() > 0 {
				rows = append(rows, row)
			}
		})
		if len(rows) > 0 {
			break
		}
	}

	docs := make([]*domain.RawDocument, 0, len(rows))
	for _, row := range rows {
		if doc := f.rowDocument(row, pageURL); doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, hasNextLink(page)
}

type incidentRow struct {
	date, incidentType, address, description string
}

// classifyCells assigns cells to columns by content, then by position for
// anything still unassigned.
func classifyCells(texts []string) incidentRow {
	var r incidentRow
	for _, text := range texts {
		switch {
		case r.date == "" && rowDateRe.MatchString(text):
			r.date = text
		case r.incidentType == "" && !rowAddressRe.MatchString(text):
			r.incidentType = text
		case r.address == "" && rowAddressRe.MatchString(text):
			r.address = text
		case r.description == "" && len([]rune(text)) > 5:
			r.description = text
		}
	}
	if r.date == "" && len(texts) >= 1 {
		r.date = texts[0]
	}
	if r.incidentType == "" && len(texts) >= 2 {
		r.incidentType = texts[1]
	}
	if r.address == "" && len(texts) >= 3 {
		r.address = texts[2]
	}
	return r
}

func (f *CitizenRIMS) rowDocument(row *goquery.Selection, pageURL string) *domain.RawDocument {
	var texts []string
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		texts = append(texts, collapse(td.Text()))
	})
	r := classifyCells(texts)

	var parts []string
	for _, p := range []string{r.incidentType, r.address, r.description} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	raw := collapse(strings.Join(parts, " at "))
	if raw == "" {
		raw = collapse(strings.Join(texts[:min(3, len(texts))], " "))
	}

	doc, err := domain.NewRawDocument(
		pageURL, f.agencyID, "incident_log", r.incidentType, raw,
		parseDate(r.date, citizenRIMSLayouts...),
		domain.Metadata{
			"address":       r.address,
			"incident_type": r.incidentType,
			"page_url":      pageURL,
		},
	)
	if err != nil {
		return nil
	}
	return doc
}
