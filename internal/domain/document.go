// Package domain contains the core models shared by every cadence component.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDocument is returned when a RawDocument is missing required fields.
var ErrInvalidDocument = errors.New("invalid raw document")

// RawDocument is one document as produced by a platform fetcher.
//
// Each RawDocument owns its SourceMetadata: constructors and Clone copy the
// map deeply so two documents never share nested state.
type RawDocument struct {
	URL              string     `json:"url"`
	AgencyID         string     `json:"agency_id"`
	DocumentTypeHint string     `json:"document_type_hint"`
	Title            string     `json:"title,omitempty"`
	RawText          string     `json:"raw_text"`
	PublishedDate    *time.Time `json:"published_date,omitempty"`
	SourceMetadata   Metadata   `json:"source_metadata"`
}

// NewRawDocument validates and builds a RawDocument, deep-copying meta.
func NewRawDocument(
	url, agencyID, typeHint, title, rawText string,
	published *time.Time,
	meta Metadata,
) (*RawDocument, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("%w: agency_id is required", ErrInvalidDocument)
	}

	var pub *time.Time
	if published != nil {
		p := *published
		pub = &p
	}

	return &RawDocument{
		URL:              url,
		AgencyID:         agencyID,
		DocumentTypeHint: typeHint,
		Title:            title,
		RawText:          rawText,
		PublishedDate:    pub,
		SourceMetadata:   meta.Clone(),
	}, nil
}

// Clone returns an independent copy of d.
func (d *RawDocument) Clone() *RawDocument {
	if d == nil {
		return nil
	}
	c := *d
	if d.PublishedDate != nil {
		p := *d.PublishedDate
		c.PublishedDate = &p
	}
	c.SourceMetadata = d.SourceMetadata.Clone()
	return &c
}

// CleaningResult is the output of the text cleaner.
type CleaningResult struct {
	CleanedText  string `json:"cleaned_text"`
	QualityScore int    `json:"quality_score"`
}

// ClassificationResult is the output of the document classifier.
type ClassificationResult struct {
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
}
