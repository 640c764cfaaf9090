package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ContentHash is the document identity: hex SHA-256 of url + ":" + raw_text.
func ContentHash(url, rawText string) string {
	sum := sha256.Sum256([]byte(url + ":" + rawText))
	return hex.EncodeToString(sum[:])
}

// CanonicalDocument is what gets persisted. It is written once per DocHash and
// never updated by the pipeline.
type CanonicalDocument struct {
	ID             string       `db:"id"              json:"id"`
	AgencyID       string       `db:"agency_id"       json:"agency_id"`
	URL            string       `db:"url"             json:"url"`
	DocHash        string       `db:"doc_hash"        json:"doc_hash"`
	DocumentType   DocumentType `db:"document_type"   json:"document_type"`
	Confidence     float64      `db:"type_confidence" json:"type_confidence"`
	Title          *string      `db:"title"           json:"title,omitempty"`
	RawText        string       `db:"raw_text"        json:"raw_text"`
	CleanedText    string       `db:"cleaned_text"    json:"cleaned_text"`
	QualityScore   int          `db:"quality_score"   json:"quality_score"`
	PublishedDate  *time.Time   `db:"published_date"  json:"published_date,omitempty"`
	SourceMetadata Metadata     `db:"source_metadata" json:"source_metadata"`
	IngestedAt     time.Time    `db:"ingested_at"     json:"ingested_at"`
}

// NewCanonicalDocument assembles the persisted form from a raw document and
// its cleaning and classification results.
func NewCanonicalDocument(
	raw *RawDocument,
	cleaned CleaningResult,
	class ClassificationResult,
	now time.Time,
) *CanonicalDocument {
	var title *string
	if raw.Title != "" {
		t := raw.Title
		title = &t
	}
	c := raw.Clone()
	return &CanonicalDocument{
		ID:             uuid.NewString(),
		AgencyID:       c.AgencyID,
		URL:            c.URL,
		DocHash:        ContentHash(c.URL, c.RawText),
		DocumentType:   class.DocumentType,
		Confidence:     class.Confidence,
		Title:          title,
		RawText:        c.RawText,
		CleanedText:    cleaned.CleanedText,
		QualityScore:   cleaned.QualityScore,
		PublishedDate:  c.PublishedDate,
		SourceMetadata: c.SourceMetadata,
		IngestedAt:     now.UTC(),
	}
}
