package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"LegislativeClipping/internal/config"
	"LegislativeClipping/internal/domain"
	"LegislativeClipping/internal/ports"
	"LegislativeClipping/internal/relevance"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultPageSize = 20
	maxPageSize     = 100
)

const newsColumns = "n.id, n.source, n.title, n.url, n.summary, n.content, n.extraction_status, n.word_count, n.published_at, n.collected_at"

const scoreColumns = "s.score, s.tier, s.matched_keywords, s.term_details, s.risk_score, s.main_axis, s.ruleset_version, s.scored_at"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type labelCount struct {
	Label string `db:"label"`
	Total int    `db:"total"`
}

// Repository persists news, scores and collection runs through sqlx.
type Repository struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var (
	_ ports.NewsRepository = (*Repository)(nil)
	_ ports.NewsReader     = (*Repository)(nil)
)

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Repository, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		path := cfg.DSN
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create database dir: %w", err)
				}
			}
		}
		dsn = path
	case DriverPostgres:
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	repo := NewRepository(db, driver)
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an existing connection; driver picks the placeholder style.
func NewRepository(db *sqlx.DB, driver string) *Repository {
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &Repository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
		now:     time.Now,
	}
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Upsert inserts a record unless its URL is already stored.
func (r *Repository) Upsert(ctx context.Context, rec domain.NewsRecord) (bool, error) {
	status := rec.ExtractionStatus
	if status == "" {
		status = domain.ExtractionPending
	}

	query, args, err := r.builder.
		Insert("news").
		Columns("id", "source", "title", "url", "summary", "content", "extraction_status", "word_count",
			"published_at", "collected_at", "search_head", "search_body").
		Values(rec.ID, string(rec.Source), rec.Title, rec.URL, rec.Summary, rec.Content, string(status), rec.WordCount,
			rec.PublishedAt.Unix(), rec.CollectedAt.Unix(), relevance.Fold(rec.Title+" "+rec.Summary), relevance.Fold(rec.Content)).
		Suffix("ON CONFLICT (url) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build upsert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("upsert news %s: %w", rec.URL, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert news rows: %w", err)
	}
	return affected > 0, nil
}

// UpdateContent stores the extraction outcome for a record.
func (r *Repository) UpdateContent(ctx context.Context, id string, ext domain.Extraction) error {
	query, args, err := r.builder.
		Update("news").
		Set("content", ext.Content).
		Set("search_body", relevance.Fold(ext.Content)).
		Set("word_count", ext.WordCount).
		Set("extraction_status", string(ext.Status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update content: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update content %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update content %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SaveScore writes or overwrites the score of a record.
func (r *Repository) SaveScore(ctx context.Context, scored domain.ScoredNewsRecord) error {
	keywords, err := json.Marshal(nonNil(scored.MatchedKeywords))
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	terms := scored.Terms
	if terms == nil {
		terms = []domain.TermMatch{}
	}
	details, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("encode term details: %w", err)
	}

	query, args, err := r.builder.
		Insert("scores").
		Columns("news_id", "score", "tier", "matched_keywords", "term_details", "risk_score", "main_axis", "ruleset_version", "scored_at").
		Values(scored.Record.ID, scored.Score, string(scored.Tier), string(keywords), string(details),
			scored.RiskScore, scored.MainAxis, scored.RulesetVersion, r.now().Unix()).
		Suffix(`ON CONFLICT (news_id) DO UPDATE SET
			score = excluded.score,
			tier = excluded.tier,
			matched_keywords = excluded.matched_keywords,
			term_details = excluded.term_details,
			risk_score = excluded.risk_score,
			main_axis = excluded.main_axis,
			ruleset_version = excluded.ruleset_version,
			scored_at = excluded.scored_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save score: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save score %s: %w", scored.Record.ID, err)
	}
	return nil
}

// PendingExtraction lists records whose body has not been downloaded yet, newest first.
func (r *Repository) PendingExtraction(ctx context.Context, limit int) ([]domain.NewsRecord, error) {
	q := r.builder.
		Select(newsColumns).
		From("news n").
		Where(sq.Eq{"n.extraction_status": string(domain.ExtractionPending)}).
		OrderBy("n.published_at DESC", "n.id")
	return r.selectRecords(ctx, withLimit(q, limit))
}

// PendingScoring lists extracted records that are unscored or were scored
// under a different ruleset version.
func (r *Repository) PendingScoring(ctx context.Context, rulesetVersion string, limit int) ([]domain.NewsRecord, error) {
	q := r.builder.
		Select(newsColumns).
		From("news n").
		LeftJoin("scores s ON s.news_id = n.id").
		Where(sq.NotEq{"n.extraction_status": string(domain.ExtractionPending)}).
		Where(sq.Or{sq.Eq{"s.news_id": nil}, sq.NotEq{"s.ruleset_version": rulesetVersion}}).
		OrderBy("n.published_at DESC", "n.id")
	return r.selectRecords(ctx, withLimit(q, limit))
}

// Scorable lists every stored record; limit <= 0 means all of them.
func (r *Repository) Scorable(ctx context.Context, limit int) ([]domain.NewsRecord, error) {
	q := r.builder.
		Select(newsColumns).
		From("news n").
		OrderBy("n.published_at DESC", "n.id")
	return r.selectRecords(ctx, withLimit(q, limit))
}

// RecordRun appends a collection run audit row.
func (r *Repository) RecordRun(ctx context.Context, run domain.CollectionRun) error {
	query, args, err := r.builder.
		Insert("collection_runs").
		Columns("site", "source", "started_at", "collected", "new_count", "duplicates", "duration_ms", "status", "notes").
		Values(run.Site, string(run.Source), run.StartedAt.Unix(), run.Collected, run.New, run.Duplicates,
			run.Duration.Milliseconds(), string(run.Status), run.Notes).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record run: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record run %s: %w", run.Site, err)
	}
	return nil
}

// Get loads one record with its score.
func (r *Repository) Get(ctx context.Context, id string) (domain.StoredNews, error) {
	query, args, err := r.builder.
		Select(newsColumns+", "+scoreColumns).
		From("news n").
		LeftJoin("scores s ON s.news_id = n.id").
		Where(sq.Eq{"n.id": id}).
		ToSql()
	if err != nil {
		return domain.StoredNews{}, fmt.Errorf("build get: %w", err)
	}

	var row newsRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoredNews{}, fmt.Errorf("news %s: %w", id, domain.ErrNotFound)
		}
		return domain.StoredNews{}, fmt.Errorf("get news %s: %w", id, err)
	}
	return row.stored()
}

// Query returns one page of records matching filter.
func (r *Repository) Query(ctx context.Context, filter domain.NewsFilter) (domain.NewsPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	where := filterPredicates(filter)

	countQuery, countArgs, err := r.builder.
		Select("COUNT(*)").
		From("news n").
		LeftJoin("scores s ON s.news_id = n.id").
		Where(where).
		ToSql()
	if err != nil {
		return domain.NewsPage{}, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return domain.NewsPage{}, fmt.Errorf("count news: %w", err)
	}
	if page-1 > total/size {
		return domain.NewsPage{Items: []domain.StoredNews{}, Total: total, Page: page, PageSize: size}, nil
	}

	q := r.builder.
		Select(newsColumns+", "+scoreColumns).
		From("news n").
		LeftJoin("scores s ON s.news_id = n.id").
		Where(where).
		Limit(uint64(size)).
		Offset(uint64((page - 1) * size))
	if filter.SortBy == domain.SortByPublished {
		q = q.OrderBy("n.published_at DESC", "n.id")
	} else {
		q = q.OrderBy("COALESCE(s.score, -1) DESC", "n.published_at DESC", "n.id")
	}

	query, args, err := q.ToSql()
	if err != nil {
		return domain.NewsPage{}, fmt.Errorf("build query: %w", err)
	}
	var rows []newsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return domain.NewsPage{}, fmt.Errorf("query news: %w", err)
	}

	items := make([]domain.StoredNews, 0, len(rows))
	for _, row := range rows {
		item, err := row.stored()
		if err != nil {
			return domain.NewsPage{}, err
		}
		items = append(items, item)
	}
	return domain.NewsPage{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func filterPredicates(filter domain.NewsFilter) sq.And {
	where := sq.And{}
	if len(filter.Sources) > 0 {
		sources := make([]string, 0, len(filter.Sources))
		for _, s := range filter.Sources {
			sources = append(sources, string(s))
		}
		where = append(where, sq.Eq{"n.source": sources})
	}
	if len(filter.Tiers) > 0 {
		tiers := make([]string, 0, len(filter.Tiers))
		for _, t := range filter.Tiers {
			tiers = append(tiers, string(t))
		}
		where = append(where, sq.Eq{"s.tier": tiers})
	}
	if !filter.From.IsZero() {
		where = append(where, sq.GtOrEq{"n.published_at": filter.From.Unix()})
	}
	if !filter.To.IsZero() {
		where = append(where, sq.LtOrEq{"n.published_at": filter.To.Unix()})
	}
	if filter.MinScore != nil {
		where = append(where, sq.GtOrEq{"s.score": *filter.MinScore})
	}
	if text := relevance.Fold(filter.Text); text != "" {
		pattern := "%" + likeEscaper.Replace(text) + "%"
		where = append(where, sq.Or{
			sq.Expr(`n.search_head LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`n.search_body LIKE ? ESCAPE '\'`, pattern),
		})
	}
	return where
}

// Stats aggregates the dashboard metric cards.
func (r *Repository) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{BySource: map[domain.Source]int{}, ByTier: map[string]int{}}

	var totals struct {
		Total       int           `db:"total"`
		WithContent int           `db:"with_content"`
		First       sql.NullInt64 `db:"first_collected"`
		Last        sql.NullInt64 `db:"last_collected"`
	}
	query, args, err := r.builder.
		Select(
			"COUNT(*) AS total",
			"COALESCE(SUM(CASE WHEN n.extraction_status IN ('full', 'partial') THEN 1 ELSE 0 END), 0) AS with_content",
			"MIN(n.collected_at) AS first_collected",
			"MAX(n.collected_at) AS last_collected",
		).
		From("news n").
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build stats: %w", err)
	}
	if err := r.db.GetContext(ctx, &totals, query, args...); err != nil {
		return stats, fmt.Errorf("stats totals: %w", err)
	}
	stats.Total = totals.Total
	stats.WithContent = totals.WithContent
	stats.First = unixPtr(totals.First)
	stats.Last = unixPtr(totals.Last)

	var bySource []labelCount
	if err := r.selectBuilt(ctx, &bySource,
		r.builder.Select("n.source AS label", "COUNT(*) AS total").From("news n").GroupBy("n.source")); err != nil {
		return stats, fmt.Errorf("stats by source: %w", err)
	}
	for _, row := range bySource {
		stats.BySource[domain.Source(row.Label)] = row.Total
	}

	var byTier []labelCount
	if err := r.selectBuilt(ctx, &byTier,
		r.builder.Select("s.tier AS label", "COUNT(*) AS total").From("scores s").GroupBy("s.tier")); err != nil {
		return stats, fmt.Errorf("stats by tier: %w", err)
	}
	for _, row := range byTier {
		stats.ByTier[row.Label] = row.Total
		stats.Scored += row.Total
	}
	return stats, nil
}

// SourceStats summarizes every known portal with its most recent run.
func (r *Repository) SourceStats(ctx context.Context) ([]domain.SourceStats, error) {
	var counts []struct {
		Source  string  `db:"source"`
		Total   int     `db:"total"`
		Average float64 `db:"average"`
		Alta    int     `db:"alta"`
	}
	err := r.selectBuilt(ctx, &counts, r.builder.
		Select(
			"n.source AS source",
			"COUNT(*) AS total",
			"COALESCE(AVG(s.score), 0) AS average",
			fmt.Sprintf("COALESCE(SUM(CASE WHEN s.tier = '%s' THEN 1 ELSE 0 END), 0) AS alta", domain.TierAlta),
		).
		From("news n").
		LeftJoin("scores s ON s.news_id = n.id").
		GroupBy("n.source"))
	if err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}

	var runs []struct {
		Source    string `db:"source"`
		StartedAt int64  `db:"started_at"`
		Status    string `db:"status"`
		New       int    `db:"new_count"`
	}
	err = r.selectBuilt(ctx, &runs, r.builder.
		Select("source", "started_at", "status", "new_count").
		From("collection_runs").
		OrderBy("started_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("source runs: %w", err)
	}

	bySource := make(map[domain.Source]*domain.SourceStats, len(domain.Sources))
	result := make([]domain.SourceStats, len(domain.Sources))
	for i, src := range domain.Sources {
		result[i].Source = src
		bySource[src] = &result[i]
	}
	for _, c := range counts {
		if s, ok := bySource[domain.Source(c.Source)]; ok {
			s.Total = c.Total
			s.AverageScore = round2(c.Average)
			s.Alta = c.Alta
		}
	}
	for _, run := range runs {
		s, ok := bySource[domain.Source(run.Source)]
		if !ok || s.LastRunAt != nil {
			continue
		}
		at := time.Unix(run.StartedAt, 0).UTC()
		s.LastRunAt = &at
		s.LastRunStatus = domain.RunStatus(run.Status)
		s.LastRunNew = run.New
	}
	return result, nil
}

func (r *Repository) selectRecords(ctx context.Context, q sq.SelectBuilder) ([]domain.NewsRecord, error) {
	var rows []newsRow
	if err := r.selectBuilt(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("select news: %w", err)
	}
	records := make([]domain.NewsRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (r *Repository) selectBuilt(ctx context.Context, dest any, q sq.SelectBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}

func withLimit(q sq.SelectBuilder, limit int) sq.SelectBuilder {
	if limit > 0 {
		return q.Limit(uint64(limit))
	}
	return q
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
