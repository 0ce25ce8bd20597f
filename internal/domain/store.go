package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a news id is unknown to the store.
var ErrNotFound = errors.New("news not found")

// CollectionBatch is what one site produced during a collection pass.
type CollectionBatch struct {
	Site     string
	Source   Source
	Records  []NewsRecord
	Duration time.Duration
	Err      error
}

// Extraction is the outcome of downloading an article body.
type Extraction struct {
	Content   string
	Title     string
	WordCount int
	Status    ExtractionStatus
}

// RunStatus marks a collection run outcome.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// CollectionRun is the audit row written for every site visited in a run.
type CollectionRun struct {
	Site       string
	Source     Source
	StartedAt  time.Time
	Collected  int
	New        int
	Duplicates int
	Duration   time.Duration
	Status     RunStatus
	Notes      string
}

// StoredNews is a persisted record with its latest score, when it has one.
type StoredNews struct {
	Record   NewsRecord        `json:"record"`
	Scored   *ScoredNewsRecord `json:"score,omitempty"`
	ScoredAt *time.Time        `json:"scored_at,omitempty"`
}

// SortField selects the dashboard ordering.
type SortField string

const (
	SortByScore     SortField = "score"
	SortByPublished SortField = "published"
)

// NewsFilter carries the dashboard's filter predicates. Zero values disable a predicate.
type NewsFilter struct {
	Sources  []Source
	Tiers    []Tier
	From     time.Time
	To       time.Time
	MinScore *float64
	Text     string
	SortBy   SortField
	Page     int
	PageSize int
}

// NewsPage is one page of filtered results.
type NewsPage struct {
	Items    []StoredNews `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// Stats aggregates the dashboard metric cards.
type Stats struct {
	Total       int            `json:"total"`
	BySource    map[Source]int `json:"by_source"`
	ByTier      map[string]int `json:"by_tier"`
	WithContent int            `json:"with_content"`
	Scored      int            `json:"scored"`
	First       *time.Time     `json:"first_collected,omitempty"`
	Last        *time.Time     `json:"last_collected,omitempty"`
}

// SourceStats summarizes one portal and its latest collection run.
type SourceStats struct {
	Source        Source     `json:"source"`
	Total         int        `json:"total"`
	AverageScore  float64    `json:"average_score"`
	Alta          int        `json:"alta"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus RunStatus  `json:"last_run_status,omitempty"`
	LastRunNew    int        `json:"last_run_new"`
}
