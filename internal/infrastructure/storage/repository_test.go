package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"LegislativeClipping/internal/config"
	"LegislativeClipping/internal/domain"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := Open(context.Background(), config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	repo.now = func() time.Time { return base }
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newsItem(source domain.Source, url, title string, published time.Time) domain.NewsRecord {
	return domain.NewsRecord{
		ID:          domain.RecordID(source, url),
		Source:      source,
		Title:       title,
		URL:         url,
		PublishedAt: published,
		CollectedAt: base,
	}
}

func scoredItem(rec domain.NewsRecord, score float64, tier domain.Tier, version string) domain.ScoredNewsRecord {
	return domain.ScoredNewsRecord{
		Record:          rec,
		Score:           score,
		Tier:            tier,
		MatchedKeywords: []string{"simples nacional"},
		RiskScore:       2,
		MainAxis:        "Tributação",
		Terms: []domain.TermMatch{
			{Keyword: "simples nacional", Axis: "Tributação", Count: 1, Weight: score, Contribution: score},
		},
		RulesetVersion: version,
	}
}

func TestUpsertDeduplicatesByURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newsItem(domain.SourceCamara, "https://www.camara.leg.br/noticias/1", "Comissão aprova", base)
	created, err := repo.Upsert(ctx, rec)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	created, err = repo.Upsert(ctx, rec)
	if err != nil || created {
		t.Fatalf("second upsert should be a duplicate: created=%v err=%v", created, err)
	}

	pending, err := repo.PendingExtraction(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExtraction: %v", err)
	}
	if len(pending) != 1 || pending[0].ExtractionStatus != domain.ExtractionPending {
		t.Fatalf("unexpected pending extraction: %+v", pending)
	}
	if !pending[0].PublishedAt.Equal(base) {
		t.Fatalf("published_at round trip failed: %v", pending[0].PublishedAt)
	}
}

func TestExtractionAndScoringLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newsItem(domain.SourceSenado, "https://www12.senado.leg.br/noticias/1", "Senado aprova", base)
	if _, err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	pending, err := repo.PendingScoring(ctx, "v1", 10)
	if err != nil {
		t.Fatalf("PendingScoring: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("records awaiting extraction must not be scored yet")
	}

	ext := domain.Extraction{Content: "texto completo", WordCount: 2, Status: domain.ExtractionPartial}
	if err := repo.UpdateContent(ctx, rec.ID, ext); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if err := repo.UpdateContent(ctx, "missing", ext); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	pending, err = repo.PendingScoring(ctx, "v1", 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one record to score, got %d (%v)", len(pending), err)
	}
	if pending[0].Content != "texto completo" {
		t.Fatalf("content not persisted: %q", pending[0].Content)
	}

	if err := repo.SaveScore(ctx, scoredItem(pending[0], 55, domain.TierMedia, "v1")); err != nil {
		t.Fatalf("SaveScore: %v", err)
	}
	if pending, _ = repo.PendingScoring(ctx, "v1", 10); len(pending) != 0 {
		t.Fatalf("scored record should not be pending under the same version")
	}
	if pending, _ = repo.PendingScoring(ctx, "v2", 10); len(pending) != 1 {
		t.Fatalf("record scored under v1 should be pending under v2")
	}

	if err := repo.SaveScore(ctx, scoredItem(rec, 80, domain.TierAlta, "v2")); err != nil {
		t.Fatalf("overwrite score: %v", err)
	}
	stored, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Scored == nil || stored.Scored.Score != 80 || stored.Scored.Tier != domain.TierAlta {
		t.Fatalf("score not overwritten: %+v", stored.Scored)
	}
	if len(stored.Scored.Terms) != 1 || stored.Scored.MatchedKeywords[0] != "simples nacional" {
		t.Fatalf("term details not decoded: %+v", stored.Scored)
	}
	if stored.ScoredAt == nil || !stored.ScoredAt.Equal(base) {
		t.Fatalf("unexpected scored_at %v", stored.ScoredAt)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func seed(t *testing.T, repo *Repository) {
	t.Helper()
	ctx := context.Background()

	items := []struct {
		rec   domain.NewsRecord
		score float64
		tier  domain.Tier
	}{
		{newsItem(domain.SourceCamara, "https://c/1", "Reforma tributária avança", base.Add(-48*time.Hour)), 84, domain.TierAlta},
		{newsItem(domain.SourceCamara, "https://c/2", "Sessão solene", base.Add(-24*time.Hour)), 10, domain.TierBaixa},
		{newsItem(domain.SourceSenado, "https://s/1", "Crédito para microempresas", base), 45, domain.TierMedia},
		{newsItem(domain.SourceAgenciaGov, "https://g/1", "Agenda do ministro", base.Add(-72*time.Hour)), -1, ""},
	}
	for _, it := range items {
		if _, err := repo.Upsert(ctx, it.rec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if it.score < 0 {
			continue
		}
		if err := repo.UpdateContent(ctx, it.rec.ID, domain.Extraction{Content: it.rec.Title, WordCount: 2, Status: domain.ExtractionFull}); err != nil {
			t.Fatalf("update content: %v", err)
		}
		if err := repo.SaveScore(ctx, scoredItem(it.rec, it.score, it.tier, "v1")); err != nil {
			t.Fatalf("save score: %v", err)
		}
	}
}

func TestQueryFiltersAndSorting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	seed(t, repo)

	all, err := repo.Query(ctx, domain.NewsFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if all.Total != 4 || len(all.Items) != 4 {
		t.Fatalf("expected 4 items, got total=%d len=%d", all.Total, len(all.Items))
	}
	if all.Items[0].Scored.Score != 84 || all.Items[3].Scored != nil {
		t.Fatalf("default sort should be by score with unscored last")
	}

	byDate, _ := repo.Query(ctx, domain.NewsFilter{SortBy: domain.SortByPublished})
	if byDate.Items[0].Record.URL != "https://s/1" {
		t.Fatalf("expected newest first, got %s", byDate.Items[0].Record.URL)
	}

	minScore := 40.0
	cases := []struct {
		name   string
		filter domain.NewsFilter
		want   int
	}{
		{"source", domain.NewsFilter{Sources: []domain.Source{domain.SourceCamara}}, 2},
		{"tier", domain.NewsFilter{Tiers: []domain.Tier{domain.TierAlta, domain.TierMedia}}, 2},
		{"min score", domain.NewsFilter{MinScore: &minScore}, 2},
		{"range", domain.NewsFilter{From: base.Add(-30 * time.Hour), To: base.Add(-time.Hour)}, 1},
		{"text", domain.NewsFilter{Text: "CRÉDITO"}, 1},
		{"text lowercase", domain.NewsFilter{Text: "microempresas"}, 1},
	}
	for _, tc := range cases {
		page, err := repo.Query(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if page.Total != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, page.Total)
		}
	}

	paged, _ := repo.Query(ctx, domain.NewsFilter{Page: 2, PageSize: 3})
	if len(paged.Items) != 1 || paged.Total != 4 || paged.Page != 2 {
		t.Fatalf("unexpected second page: %+v", paged)
	}
	capped, _ := repo.Query(ctx, domain.NewsFilter{PageSize: 1000})
	if capped.PageSize != maxPageSize {
		t.Fatalf("page size should be capped, got %d", capped.PageSize)
	}
}

func TestStatsAndSourceStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	seed(t, repo)

	if err := repo.RecordRun(ctx, domain.CollectionRun{Site: "camara", Source: domain.SourceCamara, StartedAt: base.Add(-time.Hour), New: 3, Status: domain.RunSuccess}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := repo.RecordRun(ctx, domain.CollectionRun{Site: "camara", Source: domain.SourceCamara, StartedAt: base, New: 1, Status: domain.RunError, Notes: "timeout"}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 || stats.WithContent != 3 || stats.Scored != 3 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.BySource[domain.SourceCamara] != 2 || stats.ByTier[string(domain.TierAlta)] != 1 {
		t.Fatalf("unexpected breakdown: %+v", stats)
	}
	if stats.Last == nil || !stats.Last.Equal(base) {
		t.Fatalf("unexpected last collected %v", stats.Last)
	}

	sources, err := repo.SourceStats(ctx)
	if err != nil {
		t.Fatalf("SourceStats: %v", err)
	}
	if len(sources) != len(domain.Sources) {
		t.Fatalf("expected one entry per source, got %d", len(sources))
	}
	camara := sources[0]
	if camara.Source != domain.SourceCamara || camara.Total != 2 || camara.Alta != 1 || camara.AverageScore != 47 {
		t.Fatalf("unexpected camara stats: %+v", camara)
	}
	if camara.LastRunStatus != domain.RunError || camara.LastRunNew != 1 {
		t.Fatalf("expected most recent run, got %+v", camara)
	}

	all, err := repo.Scorable(ctx, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("Scorable should return every record, got %d (%v)", len(all), err)
	}
}

func TestPlaceholderFormatFollowsDriver(t *testing.T) {
	t.Parallel()

	filter := domain.NewsFilter{Sources: []domain.Source{domain.SourceCamara}, Text: "imposto"}

	pg := NewRepository(sqlx.NewDb(nil, DriverPostgres), DriverPostgres)
	query, args, err := pg.builder.Select(newsColumns).From("news n").Where(filterPredicates(filter)).ToSql()
	if err != nil {
		t.Fatalf("build postgres query: %v", err)
	}
	if !strings.Contains(query, "$1") || !strings.Contains(query, "$3") || strings.Contains(query, "?") {
		t.Fatalf("expected dollar placeholders, got %s", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}

	lite := NewRepository(sqlx.NewDb(nil, DriverSQLite), DriverSQLite)
	query, _, err = lite.builder.Select("id").From("news").Where(sq.Eq{"id": "x"}).ToSql()
	if err != nil {
		t.Fatalf("build sqlite query: %v", err)
	}
	if query != "SELECT id FROM news WHERE id = ?" {
		t.Fatalf("unexpected sqlite query %s", query)
	}
}

func TestQueryTextIsAccentInsensitiveAndLiteral(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	records := []domain.NewsRecord{
		newsItem(domain.SourceCamara, "https://c/10", "CÂMARA aprova 100% do texto", base),
		newsItem(domain.SourceCamara, "https://c/11", "Camara aprova 1000 emendas", base),
		newsItem(domain.SourceSenado, "https://s/10", "Pauta da semana", base),
	}
	for _, rec := range records {
		if _, err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	ext := domain.Extraction{Content: "Discussão sobre o crédito_rural", WordCount: 3, Status: domain.ExtractionPartial}
	if err := repo.UpdateContent(ctx, records[2].ID, ext); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	cases := []struct {
		text string
		want int
	}{
		{"câmara", 2},
		{"CAMARA APROVA", 2},
		{"100%", 1},
		{"10_", 0},
		{"crédito_rural", 1},
		{"credito rural", 0},
		{"%", 1},
	}
	for _, tc := range cases {
		page, err := repo.Query(ctx, domain.NewsFilter{Text: tc.text})
		if err != nil {
			t.Fatalf("%q: %v", tc.text, err)
		}
		if page.Total != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.text, tc.want, page.Total)
		}
	}
}

func TestQueryPageBeyondResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	seed(t, repo)

	for _, pageNum := range []int{3, 1 << 62} {
		page, err := repo.Query(ctx, domain.NewsFilter{Page: pageNum, PageSize: 100})
		if err != nil {
			t.Fatalf("page %d: %v", pageNum, err)
		}
		if len(page.Items) != 0 || page.Total != 4 || page.Page != pageNum {
			t.Fatalf("page %d: unexpected result %+v", pageNum, page)
		}
	}
}
