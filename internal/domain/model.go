package domain

import (
	"encoding/json"
	"time"
)

// NormalizedURL is the result of Normalize.
type NormalizedURL struct {
	Raw       string // input as submitted
	Canonical string // http://example.com/path
	Host      string // example.com
}

// Verdict is the final outcome for a submitted URL.
type Verdict string

const (
	VerdictSafe      Verdict = "SAFE"
	VerdictMalicious Verdict = "MALICIOUS"
)

// Status is the closed set of outcomes a reputation provider can report.
type Status string

const (
	StatusMalicious Status = "malicious"
	StatusClean     Status = "clean"
	StatusSubmitted Status = "submitted" // accepted for asynchronous scanning
	StatusSkipped   Status = "skipped"   // provider has no credential
	StatusError     Status = "error"     // transport or parse failure, not a verdict
)

// ProviderResult is what a single provider reported for one URL.
type ProviderResult struct {
	Provider string          `json:"provider"`
	Status   Status          `json:"status"`
	Raw      json.RawMessage `json:"raw"`
	Reason   string          `json:"reason,omitempty"`
	Code     int             `json:"code,omitempty"`
}

// RecordDraft is what the engine hands to the audit store.
type RecordDraft struct {
	URL         string
	Verdict     Verdict
	Explanation string
}

// VerdictRecord is a persisted analysis. The store assigns ID and CheckedAt.
type VerdictRecord struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Verdict     Verdict   `json:"verdict"`
	Explanation string    `json:"explanation,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}
