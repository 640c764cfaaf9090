package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const openDataPageSize = 1000

// Column name candidates shared by the open-data fetchers, most specific first.
var (
	dateColumns = []string{
		"date_occ", "date_rptd", "date", "datetime",
		"incident_date", "reported_date", "occurred_date",
	}
	typeColumns = []string{
		"crm_cd_desc", "offense_type", "incident_category", "crime_type",
		"offense_description", "type_desc", "incident_type",
	}
	locationColumns = []string{
		"location", "address", "block_address", "incident_address", "location_1",
	}
	reportColumns = []string{
		"dr_no", "incident_number", "report_id", "case_number", "report_number", "objectid", "id",
	}
	socrataLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
)

// Socrata pages through a SODA dataset endpoint
// (https://{domain}/resource/{dataset}.json).
type Socrata struct {
	agencyID string
	client   *http.Client
	cfg      Config
	// DateField, when set, limits rows to the lookback window.
	DateField string
	now       func() time.Time
}

// NewSocrata creates a Socrata fetcher for one agency.
func NewSocrata(agencyID string, client *http.Client, cfg Config) *Socrata {
	cfg.SetDefaults()
	return &Socrata{agencyID: agencyID, client: client, cfg: cfg, now: time.Now}
}

func (f *Socrata) Fetch(ctx context.Context, datasetURL string) ([]*domain.RawDocument, error) {
	host, datasetID := socrataDataset(datasetURL)
	cutoff := f.now().UTC().AddDate(0, 0, -f.cfg.LookbackDays).Format("2006-01-02T15:04:05")

	var docs []*domain.RawDocument
	for offset := 0; ; offset += openDataPageSize {
		params := url.Values{
			"$limit":  {strconv.Itoa(openDataPageSize)},
			"$offset": {strconv.Itoa(offset)},
			"$order":  {":id"},
		}
		if f.DateField != "" {
			params.Set("$where", fmt.Sprintf("%s > '%s'", f.DateField, cutoff))
		}
		pageURL, err := withQuery(datasetURL, params)
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

		// Errors come back as an object rather than an array.
		var rows []map[string]any
		if json.Unmarshal(body, &rows) != nil || len(rows) == 0 {
			break
		}
		for _, row := range rows {
			docs = append(docs, f.rowDocument(row, datasetURL, host, datasetID, offset))
		}
		if len(rows) < openDataPageSize {
			break
		}
	}
	return docs, nil
}

func socrataDataset(rawURL string) (host, datasetID string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	if _, after, ok := strings.Cut(u.Path, "/resource/"); ok {
		id, _, _ := strings.Cut(after, ".")
		return u.Host, id
	}
	return u.Host, strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", "_")
}

func (f *Socrata) rowDocument(row map[string]any, datasetURL, host, datasetID string, offset int) *domain.RawDocument {
	typeVal := lookupColumn(row, typeColumns, false)
	published := parseDate(truncateRunes(lookupColumn(row, dateColumns, false), 19), socrataLayouts...)

	return &domain.RawDocument{
		URL:              datasetURL,
		AgencyID:         f.agencyID,
		DocumentTypeHint: hintFromRecord(typeVal, datasetURL),
		Title:            typeVal,
		RawText:          formatRow(row, func(k string, v any) bool { return strings.HasPrefix(k, ":") || v == nil }),
		PublishedDate:    published,
		SourceMetadata: domain.Metadata{
			"domain":        host,
			"dataset_id":    datasetID,
			"offset":        offset,
			"report_number": nullable(lookupColumn(row, reportColumns, false)),
			"location":      nullable(lookupColumn(row, locationColumns, false)),
		},
	}
}

// lookupColumn returns the first non-null candidate column as a string.
// With foldCase, names match case-insensitively and -1 counts as null.
func lookupColumn(row map[string]any, candidates []string, foldCase bool) string {
	var lower map[string]string
	if foldCase {
		lower = make(map[string]string, len(row))
		for k := range row {
			lower[strings.ToLower(k)] = k
		}
	}
	for _, c := range candidates {
		key := c
		if foldCase {
			orig, ok := lower[c]
			if !ok {
				continue
			}
			key = orig
		}
		v, ok := row[key]
		if !ok || v == nil || (foldCase && isSentinel(v)) {
			continue
		}
		return stringify(v)
	}
	return ""
}

// formatRow dumps a record as sorted "key: value" pairs.
func formatRow(row map[string]any, skip func(k string, v any) bool) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := row[k]
		if skip(k, v) {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if addr, found := nested["human_address"]; found && addr != nil {
				v = addr
			}
		}
		parts = append(parts, k+": "+stringify(v))
	}
	return collapse(strings.Join(parts, "; "))
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func isSentinel(v any) bool {
	f, ok := v.(float64)
	return ok && f == -1
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
