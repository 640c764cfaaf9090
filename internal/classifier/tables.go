package classifier

import (
	"regexp"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// Confidence constants.
const (
	// groundTruthConfidence is the prior at or above which the platform alone decides.
	groundTruthConfidence = 0.9
	neutralBase           = 0.5
	legacyHintConfidence  = 0.55
	fallbackConfidence    = 0.4
	keywordStep           = 0.1
	keywordBoostCap       = 0.3
	keywordExcerptRunes   = 300
)

const fallbackType = domain.PressRelease

// legacyHints maps the older fetcher vocabulary onto canonical types.
var legacyHints = map[string]domain.DocumentType{
	"activity_feed":    domain.DailyActivityLog,
	"alert":            domain.CommunityAlert,
	"incident_log":     domain.IncidentReport,
	"incident_reports": domain.IncidentReport,
	"open_data_api":    domain.OpenDataRecord,
	"pdf_library":      domain.PDFDocument,
}

// NormalizeHint maps a fetcher type hint to the canonical vocabulary. Unknown
// hints pass through unchanged; ok reports whether the result is canonical.
func NormalizeHint(hint string) (normalized domain.DocumentType, ok bool) {
	if t, found := legacyHints[hint]; found {
		return t, true
	}
	normalized = domain.DocumentType(hint)
	return normalized, normalized.IsCanonical()
}

// Prior is the type a platform publishes by default.
type Prior struct {
	Type       domain.DocumentType
	Confidence float64
}

// PlatformPrior returns the prior for p. Unknown platforms have none.
func PlatformPrior(p domain.PlatformKind) (Prior, bool) {
	switch p {
	case domain.PlatformCrimeMapping:
		return Prior{domain.CrimeMappingIncident, 1.0}, true
	case domain.PlatformCitizenRIMS:
		return Prior{domain.IncidentReport, 0.9}, true
	case domain.PlatformNixle, domain.PlatformRave:
		return Prior{domain.CommunityAlert, 0.9}, true
	case domain.PlatformSocrata, domain.PlatformArcGIS:
		return Prior{domain.OpenDataRecord, 0.85}, true
	case domain.PlatformPDF:
		return Prior{domain.PDFDocument, 0.75}, true
	case domain.PlatformCivicPlus:
		return Prior{domain.PressRelease, 0.7}, true
	case domain.PlatformRSS:
		return Prior{domain.RSSItem, 0.7}, true
	case domain.PlatformUnknown:
		return Prior{}, false
	default:
		return Prior{}, false
	}
}

type urlRule struct {
	re    *regexp.Regexp
	typ   domain.DocumentType
	boost float64
}

// urlRules are tried in order against the lower-cased URL; the first match wins.
var urlRules = []urlRule{
	{regexp.MustCompile(`/press.?release|/news/|/media-release`), domain.PressRelease, 0.2},
	{regexp.MustCompile(`/arrest|/booking|/jail|/inmate`), domain.ArrestLog, 0.25},
	{regexp.MustCompile(`/activity.?log|/daily.?log|/blotter|/patrol-log`), domain.DailyActivityLog, 0.25},
	{regexp.MustCompile(`/alert|/warn|/emergency|/bolo`), domain.CommunityAlert, 0.2},
	{regexp.MustCompile(`/incident|/crime.?report`), domain.IncidentReport, 0.2},
}

type keywordSet struct {
	typ      domain.DocumentType
	keywords []string
}

// keywordSets is ordered: when two types reach the same boost, the earlier
// one wins. Changing the order changes classifications.
var keywordSets = []keywordSet{
	{domain.PressRelease, []string{
		"press release", "for immediate release", "media contact", "public information officer", "pio",
	}},
	{domain.ArrestLog, []string{
		"arrested", "booking", "bail", "arraignment", "charges filed", "booked into", "remanded",
	}},
	{domain.DailyActivityLog, []string{
		"daily activity", "patrol log", "calls for service", "cad report", "shift summary", "service calls",
	}},
	{domain.CommunityAlert, []string{
		"bolo", "be on the lookout", "wanted", "missing person", "amber alert", "silver alert",
		"shelter in place", "advisory",
	}},
	{domain.IncidentReport, []string{
		"case number", "report number", "occurred at", "victim reported", "suspect fled", "investigation ongoing",
	}},
}
