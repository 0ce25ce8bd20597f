package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"LegislativeClipping/internal/domain"
	"LegislativeClipping/internal/scanner"
)

const maxSummaryRunes = 200

// PageFetcher is the subset of fetch.Fetcher the listing scanners use.
type PageFetcher interface {
	Document(ctx context.Context, url string) (*goquery.Document, error)
	Pause(ctx context.Context) error
}

// profile captures what differs between the portals' "latest news" listings.
type profile struct {
	name       string
	source     domain.Source
	baseURL    string
	newsURL    string
	link       *regexp.Regexp
	pathDate   *regexp.Regexp
	minTitle   int
	perPage    int
	skipTitles []string
	summary    bool
	pageURL    func(newsURL string, page int) (string, error)
}

// ListingScanner walks paginated listing pages and extracts article links.
type ListingScanner struct {
	profile profile
	fetcher PageFetcher
	logger  *slog.Logger
}

var _ scanner.Scanner = (*ListingScanner)(nil)

// Name identifies the strategy inside the registry.
func (s *ListingScanner) Name() string {
	return s.profile.name
}

// Source is the portal the scanner reads.
func (s *ListingScanner) Source() domain.Source {
	return s.profile.source
}

// Scan visits up to req.MaxPages listing pages. A page that fails is skipped;
// the scan fails only when every page failed.
func (s *ListingScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsRecord, error) {
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	baseURL := firstNonEmpty(req.BaseURL, s.profile.baseURL)
	newsURL := firstNonEmpty(req.NewsURL, s.profile.newsURL)
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	var (
		results  []domain.NewsRecord
		seen     = map[string]struct{}{}
		failures int
		lastErr  error
	)

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := s.fetcher.Pause(ctx); err != nil {
				return nil, err
			}
		}

		pageURL, err := s.profile.pageURL(newsURL, page)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", s.profile.name, page, err)
		}

		doc, err := s.fetcher.Document(ctx, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			failures++
			lastErr = err
			s.warn("listing page failed", "page", page, "url", pageURL, "error", err)
			continue
		}

		items := s.extract(doc, baseURL, now)
		for _, item := range items {
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}
			results = append(results, item)
		}
		s.debug("listing page parsed", "page", page, "items", len(items))

		if len(items) == 0 && page > 1 {
			break
		}
	}

	if failures == maxPages {
		return nil, fmt.Errorf("%s: all %d listing pages failed: %w", s.profile.name, maxPages, lastErr)
	}
	return results, nil
}

func (s *ListingScanner) extract(doc *goquery.Document, baseURL string, now time.Time) []domain.NewsRecord {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var items []domain.NewsRecord
	inPage := map[string]struct{}{}

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !s.profile.link.MatchString(href) {
			return true
		}

		title := collapse(a.Text())
		if len([]rune(title)) < s.profile.minTitle || s.skipTitle(title) {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		link := base.ResolveReference(ref)
		link.Fragment = ""
		canonical := link.String()
		if _, ok := inPage[canonical]; ok {
			return true
		}
		inPage[canonical] = struct{}{}

		published, ok := parseDate(a.Parent().Text())
		if !ok {
			published, ok = dateFromPath(s.profile.pathDate, href)
		}
		if !ok {
			published = now
		}

		record := domain.NewsRecord{
			ID:               domain.RecordID(s.profile.source, canonical),
			Source:           s.profile.source,
			Title:            title,
			URL:              canonical,
			PublishedAt:      published,
			CollectedAt:      now,
			ExtractionStatus: domain.ExtractionPending,
		}
		if s.profile.summary {
			record.Summary = summaryNear(a)
		}

		items = append(items, record)
		return len(items) < s.profile.perPage
	})

	return items
}

func (s *ListingScanner) skipTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, skip := range s.profile.skipTitles {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

// summaryNear takes the first paragraph following the link's container.
func summaryNear(a *goquery.Selection) string {
	parent := a.Parent()
	p := parent.NextAllFiltered("p").First()
	if p.Length() == 0 {
		p = parent.Find("p").First()
	}
	text := collapse(p.Text())
	if runes := []rune(text); len(runes) > maxSummaryRunes {
		text = string(runes[:maxSummaryRunes])
	}
	return text
}

func queryPage(param string) func(string, int) (string, error) {
	return func(newsURL string, page int) (string, error) {
		if page == 1 {
			return newsURL, nil
		}
		parsed, err := url.Parse(newsURL)
		if err != nil {
			return "", fmt.Errorf("invalid news url %s: %w", newsURL, err)
		}
		q := parsed.Query()
		q.Set(param, strconv.Itoa(page))
		parsed.RawQuery = q.Encode()
		return parsed.String(), nil
	}
}

func pathPage(newsURL string, page int) (string, error) {
	if page == 1 {
		return newsURL, nil
	}
	parsed, err := url.Parse(newsURL)
	if err != nil {
		return "", fmt.Errorf("invalid news url %s: %w", newsURL, err)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/" + strconv.Itoa(page)
	return parsed.String(), nil
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *ListingScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *ListingScanner) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
