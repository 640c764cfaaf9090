package domain

// DocumentType is the canonical classification vocabulary.
type DocumentType string

const (
	PressRelease         DocumentType = "press_release"
	ArrestLog            DocumentType = "arrest_log"
	DailyActivityLog     DocumentType = "daily_activity_log"
	CommunityAlert       DocumentType = "community_alert"
	IncidentReport       DocumentType = "incident_report"
	CrimeMappingIncident DocumentType = "crimemapping_incident"
	OpenDataRecord       DocumentType = "open_data_record"
	PDFDocument          DocumentType = "pdf_document"
	RSSItem              DocumentType = "rss_item"
)

// DocumentTypes lists the canonical vocabulary in a fixed order.
var DocumentTypes = []DocumentType{
	PressRelease,
	ArrestLog,
	DailyActivityLog,
	CommunityAlert,
	IncidentReport,
	CrimeMappingIncident,
	OpenDataRecord,
	PDFDocument,
	RSSItem,
}

// IsCanonical reports whether t is one of DocumentTypes.
func (t DocumentType) IsCanonical() bool {
	switch t {
	case PressRelease, ArrestLog, DailyActivityLog, CommunityAlert, IncidentReport,
		CrimeMappingIncident, OpenDataRecord, PDFDocument, RSSItem:
		return true
	}
	return false
}

func (t DocumentType) String() string { return string(t) }
