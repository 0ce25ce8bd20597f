package ports

import (
	"context"
	"time"

	"LegislativeClipping/internal/domain"
)

// NewsSource pulls fresh listings from the configured portals.
type NewsSource interface {
	Collect(ctx context.Context) ([]domain.CollectionBatch, error)
}

// ContentExtractor downloads an article page and returns its body text.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (domain.Extraction, error)
}

// NewsRepository persists collected and scored news for the dashboard.
type NewsRepository interface {
	Upsert(ctx context.Context, record domain.NewsRecord) (created bool, err error)
	UpdateContent(ctx context.Context, id string, extraction domain.Extraction) error
	SaveScore(ctx context.Context, scored domain.ScoredNewsRecord) error
	PendingExtraction(ctx context.Context, limit int) ([]domain.NewsRecord, error)
	PendingScoring(ctx context.Context, rulesetVersion string, limit int) ([]domain.NewsRecord, error)
	Scorable(ctx context.Context, limit int) ([]domain.NewsRecord, error)
	RecordRun(ctx context.Context, run domain.CollectionRun) error
}

// NewsReader serves the dashboard's filter and aggregate queries.
type NewsReader interface {
	Get(ctx context.Context, id string) (domain.StoredNews, error)
	Query(ctx context.Context, filter domain.NewsFilter) (domain.NewsPage, error)
	Stats(ctx context.Context) (domain.Stats, error)
	SourceStats(ctx context.Context) ([]domain.SourceStats, error)
}

// SeenCache remembers links recently handled so repeated runs skip them.
type SeenCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Notifier streams selected digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
