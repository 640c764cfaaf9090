package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const (
	crimeMappingDays     = 14
	crimeMappingPageSize = 100
)

var crimeMappingLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006 3:04:05 PM",
}

// CrimeMapping reads incidents from the crimemapping.com agency data API.
// The feed URL is ignored; the portal id on the agency selects the data.
type CrimeMapping struct {
	agencyID string
	portalID int64
	client   *http.Client
	cfg      Config
}

// NewCrimeMapping creates a fetcher for one agency's crimemapping portal.
func NewCrimeMapping(agencyID string, portalID int64, client *http.Client, cfg Config) *CrimeMapping {
	cfg.SetDefaults()
	return &CrimeMapping{agencyID: agencyID, portalID: portalID, client: client, cfg: cfg}
}

type crimeMappingIncident struct {
	TypeDescription string `json:"TypeDescription"`
	Address         string `json:"Address"`
	DateOccurred    string `json:"DateOccurred"`
	CaseNumber      string `json:"CaseNumber"`
	Description     string `json:"Description"`
}

type crimeMappingPage struct {
	Incidents    []crimeMappingIncident `json:"Incidents"`
	TotalRecords int                    `json:"TotalRecords"`
}

func (f *CrimeMapping) portalURL() string {
	return fmt.Sprintf("%s/map/agency/%d", strings.TrimRight(f.cfg.CrimeMappingBaseURL, "/"), f.portalID)
}

func (f *CrimeMapping) Fetch(ctx context.Context, _ string) ([]*domain.RawDocument, error) {
	api := fmt.Sprintf("%s/cap/agency/%d", strings.TrimRight(f.cfg.CrimeMappingBaseURL, "/"), f.portalID)

	var docs []*domain.RawDocument
	for offset := 0; ; offset += crimeMappingPageSize {
		pageURL, err := withQuery(api, url.Values{
			"days":           {strconv.Itoa(crimeMappingDays)},
			"DetailRecordId": {"0"},
			"offset":         {strconv.Itoa(offset)},
			"limit":          {strconv.Itoa(crimeMappingPageSize)},
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
		var page crimeMappingPage
		if decodeErr := json.Unmarshal(body, &page); decodeErr != nil {
			if offset == 0 {
				return nil, fmt.Errorf("decode crimemapping %d: %w", f.portalID, decodeErr)
			}
			break
		}
		for _, inc := range page.Incidents {
			docs = append(docs, f.incidentDocument(inc))
		}
		if len(page.Incidents) == 0 || offset+len(page.Incidents) >= page.TotalRecords {
			break
		}
	}
	return docs, nil
}

func (f *CrimeMapping) incidentDocument(inc crimeMappingIncident) *domain.RawDocument {
	text := fmt.Sprintf("%s at %s on %s. %s", inc.TypeDescription, inc.Address, inc.DateOccurred, inc.Description)
	return &domain.RawDocument{
		URL:              f.portalURL(),
		AgencyID:         f.agencyID,
		DocumentTypeHint: "incident_log",
		Title:            inc.TypeDescription,
		RawText:          collapse(text),
		PublishedDate:    parseDate(inc.DateOccurred, crimeMappingLayouts...),
		SourceMetadata: domain.Metadata{
			"crimemapping_id": f.portalID,
			"case_number":     nullable(inc.CaseNumber),
		},
	}
}
