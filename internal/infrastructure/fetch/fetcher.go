package fetch

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"LegislativeClipping/internal/config"
)

// Fetcher issues polite GET requests against the government portals.
type Fetcher struct {
	client   *resty.Client
	minDelay time.Duration
	maxDelay time.Duration
}

// NewFetcher builds a resty client with retries on transport errors, 429 and 5xx.
func NewFetcher(cfg config.HTTPConfig) *Fetcher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "pt-BR,pt;q=0.8,en;q=0.6")

	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		code := resp.StatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	})

	return &Fetcher{client: client, minDelay: cfg.MinDelay, maxDelay: cfg.MaxDelay}
}

// Get returns the body of url or an error for non-2xx responses.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("request %s: unexpected status %s", url, resp.Status())
	}
	return resp.Body(), nil
}

// Document fetches and parses an HTML page.
func (f *Fetcher) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", url, err)
	}
	return doc, nil
}

// Pause sleeps for a random delay between the configured bounds.
func (f *Fetcher) Pause(ctx context.Context) error {
	delay := f.minDelay
	if spread := f.maxDelay - f.minDelay; spread > 0 {
		delay += time.Duration(rand.Int64N(int64(spread)))
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
