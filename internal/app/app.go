package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"LegislativeClipping/internal/api"
	"LegislativeClipping/internal/config"
	"LegislativeClipping/internal/infrastructure/cache"
	"LegislativeClipping/internal/infrastructure/extractor"
	"LegislativeClipping/internal/infrastructure/fetch"
	"LegislativeClipping/internal/infrastructure/parser"
	"LegislativeClipping/internal/infrastructure/scheduler"
	"LegislativeClipping/internal/infrastructure/storage"
	"LegislativeClipping/internal/infrastructure/telegram"
	"LegislativeClipping/internal/logging"
	"LegislativeClipping/internal/ports"
	"LegislativeClipping/internal/relevance"
	"LegislativeClipping/internal/scanner"
	"LegislativeClipping/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	repo     *storage.Repository
	redis    *cache.RedisCache
	pipeline *usecase.Pipeline
	runOpts  usecase.RunOptions
}

// New opens storage, loads the ruleset and builds the pipeline.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	ruleset, err := cfg.LoadRuleset()
	if err != nil {
		return nil, fmt.Errorf("load ruleset: %w", err)
	}
	classifier, err := relevance.New(ruleset)
	if err != nil {
		return nil, err
	}

	repo, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &Application{
		cfg:    cfg,
		logger: baseLogger,
		repo:   repo,
		runOpts: usecase.RunOptions{
			MaxExtraction: cfg.Pipeline.MaxExtractionPerRun,
			MaxScoring:    cfg.Pipeline.MaxScoringPerRun,
			Notify:        true,
		},
	}

	var seen ports.SeenCache = cache.NewMemoryCache(cfg.Cache.TTL)
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache)
		if err != nil {
			baseLogger.Warn("redis unavailable, using in-memory seen cache", "error", err)
		} else {
			a.redis = redisCache
			seen = redisCache
		}
	}

	fetcher := fetch.NewFetcher(cfg.HTTP)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewCamaraScanner(fetcher, baseLogger.With("component", "scanner.camara")))
	registry.Register(parser.NewSenadoScanner(fetcher, baseLogger.With("component", "scanner.senado")))
	registry.Register(parser.NewAgenciaGovScanner(fetcher, baseLogger.With("component", "scanner.agencia_gov")))

	source := parser.NewStrategySource(registry, cfg.Sites, cfg.Pipeline.MaxPagesPerSource, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Enabled() {
		notifier = tg
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Repository: repo,
		Extractor:  extractor.New(fetcher, baseLogger.With("component", "extractor")),
		Classifier: classifier,
		Seen:       seen,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
		Workers:    cfg.Pipeline.Workers,
	})

	baseLogger.Info("application ready",
		"database", cfg.Database.Driver,
		"ruleset", classifier.Version(),
		"sites", len(cfg.Sites),
		"telegram", notifier != nil,
	)
	return a, nil
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.ProcessRun(ctx, a.runOpts)
}

// Rescore re-scores every stored record under the configured ruleset.
func (a *Application) Rescore(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.Rescore(ctx)
}

// Serve runs the dashboard API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	return api.Serve(ctx, a.cfg.API.Addr, a.router(), a.logger.With("component", "api"))
}

// Schedule runs the cron scheduler and the dashboard API side by side.
func (a *Application) Schedule(ctx context.Context) error {
	loc := a.cfg.Scheduler.Location()
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, loc, a.logger.With("component", "scheduler"))
	sched := usecase.NewScheduler(driver, a.pipeline, a.runOpts, a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(gctx, a.cfg.API.Addr, a.router(), a.logger.With("component", "api"))
	})
	g.Go(func() error {
		<-gctx.Done()
		return sched.Stop(context.Background())
	})
	return g.Wait()
}

// Close releases storage and cache connections.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}

func (a *Application) router() http.Handler {
	logger := a.logger.With("component", "api")
	handler := api.NewHandler(a.repo, a.pipeline, a.runOpts, a.cfg.Scheduler.Location(), logger)
	return api.NewRouter(handler, a.cfg.API.Mode)
}
