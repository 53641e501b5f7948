package models

import (
	"database/sql"
	"time"
)

// Source status values.
const (
	SourceActive      = "active"
	SourceFailed      = "failed"
	SourceRateLimited = "rate_limited"
)

// Source represents a row in the 'sources' table: one feed or endpoint whose
// health is tracked across scrape runs.
type Source struct {
	ID              int64          `db:"id"`
	URL             string         `db:"url"`
	Name            string         `db:"name"`
	Kind            string         `db:"kind"`
	Comments        sql.NullString `db:"comments"`
	Status          string         `db:"status"`
	FailuresCount   int            `db:"failures_count"`
	LastError       sql.NullString `db:"last_error"`
	LastRetrievedAt sql.NullTime   `db:"last_retrieved_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// NewSource creates a new Source with default values
func NewSource(kind, url, name string) *Source {
	now := time.Now()
	return &Source{
		URL:       url,
		Name:      name,
		Kind:      kind,
		Status:    SourceActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ScrapeRun is one scrape batch and its counters.
type ScrapeRun struct {
	ID            string       `db:"id" json:"id"`
	StartedAt     time.Time    `db:"started_at" json:"started_at"`
	FinishedAt    sql.NullTime `db:"finished_at" json:"-"`
	LookbackDays  int          `db:"lookback_days" json:"lookback_days"`
	Total         int          `db:"total" json:"total"`
	Relevant      int          `db:"relevant" json:"relevant"`
	HighRelevance int          `db:"high_relevance" json:"high_relevance"`
	StateSpecific int          `db:"state_specific" json:"state_specific"`
	Rejected      int          `db:"rejected" json:"rejected"`
	AutoApproved  int          `db:"auto_approved" json:"auto_approved"`
	Duplicates    int          `db:"duplicates" json:"duplicates"`
}

// Transition is one entry of the append-only status log.
type Transition struct {
	ID         string    `db:"id" json:"id"`
	Kind       string    `db:"kind" json:"kind"`
	DocumentID string    `db:"document_id" json:"document_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	Actor      string    `db:"actor" json:"actor"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
