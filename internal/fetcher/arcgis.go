package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// ArcGIS pages through a FeatureServer or MapServer layer query endpoint.
type ArcGIS struct {
	agencyID string
	client   *http.Client
	cfg      Config
	// DateField, when set, limits features to the lookback window and is
	// preferred when resolving a feature's date.
	DateField string
	now       func() time.Time
}

// NewArcGIS creates an ArcGIS fetcher for one agency.
func NewArcGIS(agencyID string, client *http.Client, cfg Config) *ArcGIS {
	cfg.SetDefaults()
	return &ArcGIS{agencyID: agencyID, client: client, cfg: cfg, now: time.Now}
}

type arcgisPage struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
		Geometry   any            `json:"geometry"`
	} `json:"features"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
	Error                 any  `json:"error"`
}

func (f *ArcGIS) Fetch(ctx context.Context, queryURL string) ([]*domain.RawDocument, error) {
	where := "1=1"
	if f.DateField != "" {
		cutoff := f.now().UTC().AddDate(0, 0, -f.cfg.LookbackDays).Format("2006-01-02")
		where = fmt.Sprintf("%s > DATE '%s'", f.DateField, cutoff)
	}

	var docs []*domain.RawDocument
	for offset := 0; ; offset += openDataPageSize {
		pageURL, err := withQuery(queryURL, url.Values{
			"where":             {where},
			"outFields":         {"*"},
			"f":                 {"json"},
			"resultOffset":      {strconv.Itoa(offset)},
			"resultRecordCount": {strconv.Itoa(openDataPageSize)},
		})
		if err != nil {
			return nil, err
		}

		body, err := getBody(ctx, f.client, pageURL, f.cfg.UserAgent)
		if err != nil {
			if offset == 0 {
				return nil, err
			}
			break
		}

		// Service errors arrive with HTTP 200 and an "error" member.
		var page arcgisPage
		if json.Unmarshal(body, &page) != nil || page.Error != nil || len(page.Features) == 0 {
			break
		}
		for _, feat := range page.Features {
			docs = append(docs, f.featureDocument(feat.Attributes, feat.Geometry, queryURL, offset))
		}
		if !page.ExceededTransferLimit {
			break
		}
	}
	return docs, nil
}

func (f *ArcGIS) featureDocument(attrs map[string]any, geometry any, queryURL string, offset int) *domain.RawDocument {
	if attrs == nil {
		attrs = map[string]any{}
	}

	var published *time.Time
	if f.DateField != "" {
		published = arcgisDate(lookupRaw(attrs, f.DateField))
	}
	for _, c := range dateColumns {
		if published != nil {
			break
		}
		published = arcgisDate(lookupRaw(attrs, c))
	}

	typeVal := lookupColumn(attrs, typeColumns, true)
	return &domain.RawDocument{
		URL:              queryURL,
		AgencyID:         f.agencyID,
		DocumentTypeHint: hintFromRecord(typeVal, queryURL),
		Title:            typeVal,
		RawText:          formatRow(attrs, func(_ string, v any) bool { return v == nil || isSentinel(v) }),
		PublishedDate:    published,
		SourceMetadata: domain.Metadata{
			"query_url":     queryURL,
			"offset":        offset,
			"report_number": nullable(lookupColumn(attrs, reportColumns, true)),
			"location":      nullable(lookupColumn(attrs, locationColumns, true)),
			"geometry":      geometry,
		},
	}
}

// lookupRaw finds key case-insensitively.
func lookupRaw(attrs map[string]any, key string) any {
	if v, ok := attrs[key]; ok {
		return v
	}
	for k, v := range attrs {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

// arcgisDate parses epoch milliseconds (number or numeric string) or an ISO
// timestamp. Negative values are the null sentinel.
func arcgisDate(v any) *time.Time {
	var ms float64
	switch t := v.(type) {
	case float64:
		ms = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return parseDate(truncateRunes(s, 19), socrataLayouts...)
		}
		ms = parsed
	default:
		return nil
	}
	if ms < 0 {
		return nil
	}
	ts := time.UnixMilli(int64(ms)).UTC()
	return &ts
}
