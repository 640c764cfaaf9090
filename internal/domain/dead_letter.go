package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDeadLetterEntry is returned when a DLQ entry lacks an agency.
var ErrInvalidDeadLetterEntry = errors.New("invalid dead letter entry")

// DeadLetterEntry records an agency scrape that failed after all retries.
type DeadLetterEntry struct {
	AgencyID string    `json:"agency_id"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	TS       time.Time `json:"ts"`
}

// NewDeadLetterEntry validates and timestamps a DLQ entry.
func NewDeadLetterEntry(agencyID string, cause error, attempts int, now time.Time) (*DeadLetterEntry, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("%w: agency_id is required", ErrInvalidDeadLetterEntry)
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &DeadLetterEntry{AgencyID: agencyID, Error: msg, Attempts: attempts, TS: now.UTC()}, nil
}
