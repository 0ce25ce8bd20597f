package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"LegislativeClipping/internal/config"
	"LegislativeClipping/internal/domain"
	"LegislativeClipping/internal/infrastructure/fetch"
	"LegislativeClipping/internal/scanner"
)

var collectedAt = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type stubFetcher struct {
	pages  map[string]string
	calls  []string
	pauses int
}

func (f *stubFetcher) Document(_ context.Context, url string) (*goquery.Document, error) {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("request %s: unexpected status 404 Not Found", url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

func (f *stubFetcher) Pause(ctx context.Context) error {
	f.pauses++
	return ctx.Err()
}

const camaraPage = `<html><body><ul>
<li><a href="/noticias/1134567-comissao-aprova-reforma-tributaria-para-micro-e-pequenas-empresas">
  Comissão aprova reforma tributária para micro e pequenas empresas</a> <span>07/03/2025 18:42</span></li>
<li><a href="/noticias/1134567-comissao-aprova-reforma-tributaria-para-micro-e-pequenas-empresas#comentarios">
  Comissão aprova reforma tributária para micro e pequenas empresas</a></li>
<li><a href="/noticias/1134568-curta">Curta</a></li>
<li><a href="https://www.camara.leg.br/noticias/1134569-plenario-discute-novo-marco-do-licenciamento-ambiental">Plenário discute novo marco do licenciamento ambiental</a></li>
<li><a href="/deputados/1234">Deputados em exercício na legislatura</a></li>
</ul></body></html>`

func TestCamaraScannerParsesListing(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]string{
		"https://www.camara.leg.br/noticias/ultimas": camaraPage,
	}}
	s := NewCamaraScanner(fetcher, nil)

	records, err := s.Scan(context.Background(), scanner.Request{MaxPages: 1, Now: collectedAt})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}

	first := records[0]
	if first.Source != domain.SourceCamara {
		t.Fatalf("unexpected source %q", first.Source)
	}
	if first.URL != "https://www.camara.leg.br/noticias/1134567-comissao-aprova-reforma-tributaria-para-micro-e-pequenas-empresas" {
		t.Fatalf("link not resolved: %s", first.URL)
	}
	if first.Title != "Comissão aprova reforma tributária para micro e pequenas empresas" {
		t.Fatalf("title not collapsed: %q", first.Title)
	}
	want := time.Date(2025, 3, 7, 18, 42, 0, 0, brasilia)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, first.PublishedAt)
	}
	if first.ID != domain.RecordID(domain.SourceCamara, first.URL) {
		t.Fatalf("record id is not derived from url")
	}
	if first.ExtractionStatus != domain.ExtractionPending || !first.CollectedAt.Equal(collectedAt) {
		t.Fatalf("unexpected bookkeeping fields: %+v", first)
	}
	if !records[1].PublishedAt.Equal(collectedAt) {
		t.Fatalf("undated record should fall back to collection time, got %v", records[1].PublishedAt)
	}
}

func TestListingTitleCollapsesEntitySpaces(t *testing.T) {
	t.Parallel()

	page := `<html><body><ul>
<li><a href="/noticias/1134570-reforma-tributaria">Reforma&nbsp;tributária&nbsp;&nbsp;volta ao plenário</a></li>
</ul></body></html>`
	fetcher := &stubFetcher{pages: map[string]string{"https://www.camara.leg.br/noticias/ultimas": page}}

	records, err := NewCamaraScanner(fetcher, nil).Scan(context.Background(), scanner.Request{MaxPages: 1, Now: collectedAt})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Reforma tributária volta ao plenário" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestSenadoScannerPaginatesAndReadsPathDate(t *testing.T) {
	t.Parallel()

	page := func(id int) string {
		return fmt.Sprintf(`<html><body>
<a href="/noticias/materias/2025/03/0%d/senado-aprova-projeto-numero-%d">Senado aprova projeto de lei número %d</a>
</body></html>`, id, id, id)
	}
	fetcher := &stubFetcher{pages: map[string]string{
		"https://www12.senado.leg.br/noticias/ultimas":   page(5),
		"https://www12.senado.leg.br/noticias/ultimas/2": page(6),
		"https://www12.senado.leg.br/noticias/ultimas/3": `<html><body><p>vazio</p></body></html>`,
	}}
	s := NewSenadoScanner(fetcher, nil)

	records, err := s.Scan(context.Background(), scanner.Request{MaxPages: 5, Now: collectedAt})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(fetcher.calls) != 3 {
		t.Fatalf("expected to stop after the empty page, calls: %v", fetcher.calls)
	}
	if fetcher.pauses != 2 {
		t.Fatalf("expected a pause between pages, got %d", fetcher.pauses)
	}
	want := time.Date(2025, 3, 5, 0, 0, 0, 0, brasilia)
	if !records[0].PublishedAt.Equal(want) {
		t.Fatalf("expected path date %v, got %v", want, records[0].PublishedAt)
	}
}

func TestAgenciaGovScannerSkipsNavigationAndReadsSummary(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 250)
	fetcher := &stubFetcher{pages: map[string]string{
		"https://agenciagov.ebc.com.br/noticias": `<html><body>
<div><h2><a href="/noticias/202503/acessar-o-conteudo-completo">Acessar o conteúdo completo aqui</a></h2></div>
<div><h2><a href="/noticias/202503/governo-lanca-programa-de-credito">Governo lança programa de crédito para pequenos negócios</a></h2><p>` + long + `</p></div>
</body></html>`,
	}}
	s := NewAgenciaGovScanner(fetcher, nil)

	records, err := s.Scan(context.Background(), scanner.Request{MaxPages: 1, Now: collectedAt})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected navigation link to be skipped, got %d records", len(records))
	}
	if got := len([]rune(records[0].Summary)); got != maxSummaryRunes {
		t.Fatalf("expected summary truncated to %d runes, got %d", maxSummaryRunes, got)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, brasilia)
	if !records[0].PublishedAt.Equal(want) {
		t.Fatalf("expected month from path %v, got %v", want, records[0].PublishedAt)
	}
}

func TestScanFailsOnlyWhenAllPagesFail(t *testing.T) {
	t.Parallel()

	s := NewCamaraScanner(&stubFetcher{}, nil)
	if _, err := s.Scan(context.Background(), scanner.Request{MaxPages: 2, Now: collectedAt}); err == nil {
		t.Fatalf("expected error when every page fails")
	}

	partial := &stubFetcher{pages: map[string]string{
		"https://www.camara.leg.br/noticias/ultimas?pagina=2": camaraPage,
	}}
	records, err := NewCamaraScanner(partial, nil).Scan(context.Background(), scanner.Request{MaxPages: 2, Now: collectedAt})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected records from the second page, got %d", len(records))
	}
}

func TestScannerAgainstHTTPServer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pagina") != "" {
			_, _ = w.Write([]byte("<html></html>"))
			return
		}
		_, _ = w.Write([]byte(camaraPage))
	}))
	defer server.Close()

	f := fetch.NewFetcher(config.HTTPConfig{UserAgent: "test", Timeout: time.Second})
	records, err := NewCamaraScanner(f, nil).Scan(context.Background(), scanner.Request{
		BaseURL:  server.URL,
		NewsURL:  server.URL + "/noticias/ultimas",
		MaxPages: 3,
		Now:      collectedAt,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !strings.HasPrefix(records[0].URL, server.URL) {
		t.Fatalf("relative link should resolve against base url, got %s", records[0].URL)
	}
}

func TestScanStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &stubFetcher{pages: map[string]string{
		"https://www.camara.leg.br/noticias/ultimas": camaraPage,
	}}
	_, err := NewCamaraScanner(fetcher, nil).Scan(ctx, scanner.Request{MaxPages: 2, Now: collectedAt})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
