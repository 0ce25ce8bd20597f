package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"LegislativeClipping/internal/domain"
	"LegislativeClipping/internal/ports"
)

const (
	minSelectorChars  = 150
	minParagraphChars = 30
	minTitleChars     = 10
	fullContentChars  = 100
	fullContentWords  = 30
)

var (
	noiseSelectors = []string{
		"script", "style", "nav", "footer", "header",
		".menu", ".social", ".comments", ".sidebar",
		".advertisement", ".ads", ".publicity",
	}
	titleSelectors = []string{
		"h1", ".titulo", ".entry-title", ".post-title", ".noticia-titulo", ".news-title", "title",
	}
	contentSelectors = []string{
		".conteudo", ".entry-content", ".post-content", ".noticia-content", ".news-content",
		"article .content", "main article", "article", ".texto", "main",
	}
	boilerplate = []string{
		"copyright", "política", "cookie", "termos de uso",
		"todos os direitos", "developed by", "powered by",
	}
)

// BodyFetcher downloads raw article pages.
type BodyFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Pause(ctx context.Context) error
}

// Extractor pulls the main text out of article pages.
type Extractor struct {
	fetcher BodyFetcher
	logger  *slog.Logger
}

var _ ports.ContentExtractor = (*Extractor)(nil)

// New builds an extractor on top of a polite fetcher.
func New(fetcher BodyFetcher, logger *slog.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, logger: logger}
}

// Extract downloads url and returns its text. Fetch failures yield a failed
// extraction together with the error.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (domain.Extraction, error) {
	if err := e.fetcher.Pause(ctx); err != nil {
		return domain.Extraction{Status: domain.ExtractionFailed}, err
	}

	body, err := e.fetcher.Get(ctx, pageURL)
	if err != nil {
		return domain.Extraction{Status: domain.ExtractionFailed}, fmt.Errorf("extract %s: %w", pageURL, err)
	}

	return e.FromHTML(body, pageURL), nil
}

// FromHTML runs the selector cascade over an already downloaded page.
func (e *Extractor) FromHTML(body []byte, pageURL string) domain.Extraction {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.debug("parse failed", "url", pageURL, "error", err)
		return domain.Extraction{Status: domain.ExtractionFailed}
	}

	doc.Find(strings.Join(noiseSelectors, ", ")).Remove()

	title := extractTitle(doc)
	content := bySelectors(doc)
	if content == "" {
		content = byParagraphs(doc)
	}
	if content == "" {
		readTitle, readContent := e.byReadability(body, pageURL)
		content = readContent
		if title == "" {
			title = readTitle
		}
	}

	return classify(title, clean(content))
}

func classify(title, content string) domain.Extraction {
	words := len(strings.Fields(content))
	status := domain.ExtractionFailed
	switch {
	case len(content) > fullContentChars && words > fullContentWords:
		status = domain.ExtractionFull
	case content != "":
		status = domain.ExtractionPartial
	}
	return domain.Extraction{Content: content, Title: title, WordCount: words, Status: status}
}

func extractTitle(doc *goquery.Document) string {
	for _, selector := range titleSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if title := clean(sel.Text()); len(title) > minTitleChars {
				return title
			}
		}
	}
	return ""
}

func bySelectors(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if text := clean(sel.Text()); len(text) > minSelectorChars {
				return text
			}
		}
	}
	return ""
}

func byParagraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) > minParagraphChars && !isBoilerplate(text) {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func (e *Extractor) byReadability(body []byte, pageURL string) (string, string) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", ""
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		e.debug("readability failed", "url", pageURL, "error", err)
		return "", ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return article.Title, ""
	}
	return article.Title, doc.Text()
}

func isBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range boilerplate {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
