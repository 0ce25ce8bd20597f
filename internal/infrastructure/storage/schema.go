package storage

import (
	"context"
	"fmt"
)

// Timestamps are stored as unix seconds so that range filters and ordering
// behave the same on SQLite and Postgres. search_head (title and summary) and
// search_body (content) hold accent-folded lowercase text for the q filter.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS news (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		summary TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		extraction_status TEXT NOT NULL DEFAULT 'pending',
		word_count INTEGER NOT NULL DEFAULT 0,
		published_at BIGINT NOT NULL,
		collected_at BIGINT NOT NULL,
		search_head TEXT NOT NULL DEFAULT '',
		search_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_source ON news (source)`,
	`CREATE INDEX IF NOT EXISTS idx_news_published ON news (published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_news_extraction ON news (extraction_status)`,
	`CREATE TABLE IF NOT EXISTS scores (
		news_id TEXT PRIMARY KEY REFERENCES news (id) ON DELETE CASCADE,
		score DOUBLE PRECISION NOT NULL,
		tier TEXT NOT NULL,
		matched_keywords TEXT NOT NULL DEFAULT '[]',
		term_details TEXT NOT NULL DEFAULT '[]',
		risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		main_axis TEXT NOT NULL DEFAULT '',
		ruleset_version TEXT NOT NULL,
		scored_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_score ON scores (score)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_tier ON scores (tier)`,
	`CREATE TABLE IF NOT EXISTS collection_runs (
		site TEXT NOT NULL,
		source TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		collected INTEGER NOT NULL,
		new_count INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON collection_runs (started_at)`,
}

func (r *Repository) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
