package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"LegislativeClipping/internal/domain"
	"LegislativeClipping/internal/ports"
	"LegislativeClipping/internal/relevance"
)

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.NewsSource
	Repository ports.NewsRepository
	Extractor  ports.ContentExtractor
	Classifier *relevance.Classifier
	Seen       ports.SeenCache
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Clock      func() time.Time
	Workers    int
}

// RunOptions bounds the work done by a single run.
type RunOptions struct {
	MaxExtraction int
	MaxScoring    int
	SkipCollect   bool
	Notify        bool
}

// SiteReport summarizes one portal within a run.
type SiteReport struct {
	Site       string        `json:"site"`
	Source     domain.Source `json:"source"`
	Collected  int           `json:"collected"`
	New        int           `json:"new"`
	Duplicates int           `json:"duplicates"`
	Error      string        `json:"error,omitempty"`
}

// RunReport is returned by ProcessRun and Rescore.
type RunReport struct {
	StartedAt        time.Time           `json:"started_at"`
	Duration         time.Duration       `json:"duration_ns"`
	RulesetVersion   string              `json:"ruleset_version"`
	Sites            []SiteReport        `json:"sites"`
	Collected        int                 `json:"collected"`
	New              int                 `json:"new"`
	Duplicates       int                 `json:"duplicates"`
	ExtractionTried  int                 `json:"extraction_processed"`
	Extracted        int                 `json:"extracted"`
	ExtractionFailed int                 `json:"extraction_failed"`
	Scored           int                 `json:"scored"`
	Skipped          int                 `json:"skipped"`
	Failed           int                 `json:"failed"`
	WithTerms        int                 `json:"with_terms"`
	ByTier           map[domain.Tier]int `json:"by_tier"`
	Alerts           int                 `json:"alerts"`
}

// Pipeline implements the collect, extract and score workflow.
type Pipeline struct {
	source     ports.NewsSource
	repository ports.NewsRepository
	extractor  ports.ContentExtractor
	classifier *relevance.Classifier
	seen       ports.SeenCache
	notifier   ports.Notifier
	logger     *slog.Logger
	clock      func() time.Time
	workers    int

	running sync.Mutex
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:     deps.Source,
		repository: deps.Repository,
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		seen:       deps.Seen,
		notifier:   deps.Notifier,
		logger:     logger,
		clock:      clock,
		workers:    deps.Workers,
	}
}

// ProcessRun collects fresh listings, downloads pending bodies, scores what is
// pending under the current ruleset and notifies about new Alta records.
func (p *Pipeline) ProcessRun(ctx context.Context, opts RunOptions) (RunReport, error) {
	if p.repository == nil || p.classifier == nil {
		return RunReport{}, fmt.Errorf("pipeline is not configured")
	}
	if !p.running.TryLock() {
		return RunReport{}, ErrRunInProgress
	}
	defer p.running.Unlock()

	report := p.newReport()
	p.logger.Info("pipeline run started", "ruleset", report.RulesetVersion)

	created := map[string]struct{}{}
	if !opts.SkipCollect && p.source != nil {
		if err := p.collect(ctx, &report, created); err != nil {
			return p.finish(report), err
		}
	}

	if p.extractor != nil {
		if err := p.extract(ctx, &report, opts.MaxExtraction); err != nil {
			return p.finish(report), err
		}
	}

	pending, err := p.repository.PendingScoring(ctx, p.classifier.Version(), opts.MaxScoring)
	if err != nil {
		return p.finish(report), fmt.Errorf("load pending scoring: %w", err)
	}
	alerts, err := p.score(ctx, &report, pending, created)
	if err != nil {
		return p.finish(report), err
	}

	report.Alerts = len(alerts)
	if opts.Notify {
		p.notify(ctx, alerts)
	}

	report = p.finish(report)
	p.logger.Info("pipeline run finished",
		"collected", report.Collected,
		"new", report.New,
		"extracted", report.Extracted,
		"scored", report.Scored,
		"skipped", report.Skipped,
		"alta", report.ByTier[domain.TierAlta],
		"duration", report.Duration,
	)
	return report, nil
}

// Rescore recomputes the score of every stored record under the current ruleset.
func (p *Pipeline) Rescore(ctx context.Context) (RunReport, error) {
	if p.repository == nil || p.classifier == nil {
		return RunReport{}, fmt.Errorf("pipeline is not configured")
	}
	if !p.running.TryLock() {
		return RunReport{}, ErrRunInProgress
	}
	defer p.running.Unlock()

	report := p.newReport()
	records, err := p.repository.Scorable(ctx, 0)
	if err != nil {
		return p.finish(report), fmt.Errorf("load records: %w", err)
	}
	if _, err := p.score(ctx, &report, records, nil); err != nil {
		return p.finish(report), err
	}

	report = p.finish(report)
	p.logger.Info("rescore finished", "ruleset", report.RulesetVersion, "scored", report.Scored, "skipped", report.Skipped)
	return report, nil
}

func (p *Pipeline) collect(ctx context.Context, report *RunReport, created map[string]struct{}) error {
	batches, err := p.source.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	for _, batch := range batches {
		site := SiteReport{Site: batch.Site, Source: batch.Source, Collected: len(batch.Records)}
		run := domain.CollectionRun{
			Site:      batch.Site,
			Source:    batch.Source,
			StartedAt: report.StartedAt,
			Duration:  batch.Duration,
			Status:    domain.RunSuccess,
		}
		if batch.Err != nil {
			site.Error = batch.Err.Error()
			run.Status = domain.RunError
			run.Notes = batch.Err.Error()
		}

		for _, rec := range batch.Records {
			isNew, err := p.store(ctx, rec)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				p.logger.Warn("store record failed", "url", rec.URL, "error", err)
				continue
			}
			if isNew {
				site.New++
				created[rec.ID] = struct{}{}
			} else {
				site.Duplicates++
			}
		}

		run.Collected = site.Collected
		run.New = site.New
		run.Duplicates = site.Duplicates
		if err := p.repository.RecordRun(ctx, run); err != nil {
			p.logger.Warn("record run failed", "site", batch.Site, "error", err)
		}

		report.Sites = append(report.Sites, site)
		report.Collected += site.Collected
		report.New += site.New
		report.Duplicates += site.Duplicates
	}
	return nil
}

// store upserts rec unless the seen cache already knows its URL.
func (p *Pipeline) store(ctx context.Context, rec domain.NewsRecord) (bool, error) {
	if p.seen != nil {
		seen, err := p.seen.Seen(ctx, rec.URL)
		if err != nil {
			p.logger.Debug("seen cache lookup failed", "error", err)
		} else if seen {
			return false, nil
		}
	}

	created, err := p.repository.Upsert(ctx, rec)
	if err != nil {
		return false, err
	}

	if p.seen != nil {
		if err := p.seen.Mark(ctx, rec.URL); err != nil {
			p.logger.Debug("seen cache mark failed", "error", err)
		}
	}
	return created, nil
}

func (p *Pipeline) extract(ctx context.Context, report *RunReport, limit int) error {
	pending, err := p.repository.PendingExtraction(ctx, limit)
	if err != nil {
		return fmt.Errorf("load pending extraction: %w", err)
	}

	for _, rec := range pending {
		ext, err := p.extractor.Extract(ctx, rec.URL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Warn("extraction failed", "url", rec.URL, "error", err)
			ext = domain.Extraction{Status: domain.ExtractionFailed}
		}

		if err := p.repository.UpdateContent(ctx, rec.ID, ext); err != nil {
			return fmt.Errorf("update content %s: %w", rec.ID, err)
		}

		report.ExtractionTried++
		if ext.Status == domain.ExtractionFailed {
			report.ExtractionFailed++
		} else {
			report.Extracted++
		}
	}
	return nil
}

// score classifies records in parallel and persists the results. It returns
// the Alta records among created.
func (p *Pipeline) score(ctx context.Context, report *RunReport, records []domain.NewsRecord, created map[string]struct{}) ([]domain.ScoredNewsRecord, error) {
	var alerts []domain.ScoredNewsRecord

	results := p.classifier.ClassifyAll(ctx, records, p.clock(), p.workers)
	for i, res := range results {
		if res.Err != nil {
			switch {
			case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
				return alerts, res.Err
			case errors.Is(res.Err, relevance.ErrInsufficientContent):
				report.Skipped++
			default:
				report.Failed++
				p.logger.Warn("classification failed", "id", records[i].ID, "error", res.Err)
			}
			continue
		}

		if err := p.repository.SaveScore(ctx, res.Scored); err != nil {
			return alerts, fmt.Errorf("save score %s: %w", records[i].ID, err)
		}

		report.Scored++
		report.ByTier[res.Scored.Tier]++
		if len(res.Scored.MatchedKeywords) > 0 {
			report.WithTerms++
		}
		if _, ok := created[records[i].ID]; ok && res.Scored.Tier == domain.TierAlta {
			alerts = append(alerts, res.Scored)
		}
	}
	return alerts, nil
}

func (p *Pipeline) notify(ctx context.Context, alerts []domain.ScoredNewsRecord) {
	if p.notifier == nil || len(alerts) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, BuildDigest(alerts)); err != nil {
		p.logger.Warn("publish digest failed", "error", err)
	}
}

func (p *Pipeline) newReport() RunReport {
	return RunReport{
		StartedAt:      p.clock(),
		RulesetVersion: p.classifier.Version(),
		ByTier:         map[domain.Tier]int{},
	}
}

func (p *Pipeline) finish(report RunReport) RunReport {
	report.Duration = p.clock().Sub(report.StartedAt)
	return report
}
