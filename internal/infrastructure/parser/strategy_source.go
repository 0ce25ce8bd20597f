package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"LegislativeClipping/internal/config"
	"LegislativeClipping/internal/domain"
	"LegislativeClipping/internal/ports"
	"LegislativeClipping/internal/scanner"
)

// StrategySource implements NewsSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	maxPages int
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.NewsSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
// maxPages applies to sites that do not set their own limit.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, maxPages int, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		maxPages: maxPages,
		now:      time.Now,
		logger:   log,
	}
}

// Collect runs every configured site. A failing site is reported in its batch
// and does not stop the others.
func (s *StrategySource) Collect(ctx context.Context) ([]domain.CollectionBatch, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("collect", "sites", len(s.sites))

	batches := make([]domain.CollectionBatch, 0, len(s.sites))
	for _, site := range s.sites {
		if err := ctx.Err(); err != nil {
			return batches, err
		}

		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}

		maxPages := site.MaxPages
		if maxPages <= 0 {
			maxPages = s.maxPages
		}

		started := s.now()
		req := scanner.Request{
			SiteName: site.Name,
			BaseURL:  site.BaseURL,
			NewsURL:  site.NewsURL,
			MaxPages: maxPages,
			Now:      started,
			Options:  site.Options,
		}

		batch := domain.CollectionBatch{Site: site.Name, Source: strategy.Source()}
		results, err := strategy.Scan(ctx, req)
		batch.Duration = s.now().Sub(started)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return batches, err
			}
			s.warn("site scan failed", "site", site.Name, "error", err)
			batch.Err = fmt.Errorf("scan site %s: %w", site.Name, err)
			batches = append(batches, batch)
			continue
		}

		for _, rec := range results {
			if rec.Source == "" {
				rec.Source = strategy.Source()
			}
			if err := domain.ValidateRecord(rec); err != nil {
				s.debug("drop invalid record", "site", site.Name, "url", rec.URL, "error", err)
				continue
			}
			batch.Records = append(batch.Records, rec)
		}
		s.debug("site produced records", "site", site.Name, "count", len(batch.Records))
		batches = append(batches, batch)
	}

	return batches, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
