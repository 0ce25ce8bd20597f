package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"LegislativeClipping/internal/domain"
)

// newsRow mirrors news LEFT JOIN scores; score columns are NULL for unscored records.
type newsRow struct {
	ID               string `db:"id"`
	Source           string `db:"source"`
	Title            string `db:"title"`
	URL              string `db:"url"`
	Summary          string `db:"summary"`
	Content          string `db:"content"`
	ExtractionStatus string `db:"extraction_status"`
	WordCount        int    `db:"word_count"`
	PublishedAt      int64  `db:"published_at"`
	CollectedAt      int64  `db:"collected_at"`

	Score           sql.NullFloat64 `db:"score"`
	Tier            sql.NullString  `db:"tier"`
	MatchedKeywords sql.NullString  `db:"matched_keywords"`
	TermDetails     sql.NullString  `db:"term_details"`
	RiskScore       sql.NullFloat64 `db:"risk_score"`
	MainAxis        sql.NullString  `db:"main_axis"`
	RulesetVersion  sql.NullString  `db:"ruleset_version"`
	ScoredAt        sql.NullInt64   `db:"scored_at"`
}

func (row newsRow) record() domain.NewsRecord {
	return domain.NewsRecord{
		ID:               row.ID,
		Source:           domain.Source(row.Source),
		Title:            row.Title,
		Content:          row.Content,
		Summary:          row.Summary,
		URL:              row.URL,
		PublishedAt:      time.Unix(row.PublishedAt, 0).UTC(),
		CollectedAt:      time.Unix(row.CollectedAt, 0).UTC(),
		ExtractionStatus: domain.ExtractionStatus(row.ExtractionStatus),
		WordCount:        row.WordCount,
	}
}

func (row newsRow) stored() (domain.StoredNews, error) {
	stored := domain.StoredNews{Record: row.record()}
	if !row.Score.Valid {
		return stored, nil
	}

	scored := &domain.ScoredNewsRecord{
		Record:          stored.Record,
		Score:           row.Score.Float64,
		Tier:            domain.Tier(row.Tier.String),
		RiskScore:       row.RiskScore.Float64,
		MainAxis:        row.MainAxis.String,
		RulesetVersion:  row.RulesetVersion.String,
		MatchedKeywords: []string{},
		Terms:           []domain.TermMatch{},
	}
	if row.MatchedKeywords.Valid && row.MatchedKeywords.String != "" {
		if err := json.Unmarshal([]byte(row.MatchedKeywords.String), &scored.MatchedKeywords); err != nil {
			return stored, fmt.Errorf("decode keywords of %s: %w", row.ID, err)
		}
	}
	if row.TermDetails.Valid && row.TermDetails.String != "" {
		if err := json.Unmarshal([]byte(row.TermDetails.String), &scored.Terms); err != nil {
			return stored, fmt.Errorf("decode term details of %s: %w", row.ID, err)
		}
	}
	stored.Scored = scored
	stored.ScoredAt = unixPtr(row.ScoredAt)
	return stored, nil
}
