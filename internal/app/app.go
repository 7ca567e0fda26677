package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"InvestRadar/internal/analysis"
	"InvestRadar/internal/config"
	"InvestRadar/internal/feed"
	"InvestRadar/internal/ingest"
	"InvestRadar/internal/logging"
	"InvestRadar/internal/market"
	"InvestRadar/internal/ollama"
	"InvestRadar/internal/ports"
	"InvestRadar/internal/scheduler"
	"InvestRadar/internal/storage"
	"InvestRadar/internal/telegram"
	"InvestRadar/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	store    *storage.Store
	pipeline *usecase.Pipeline
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	var source ports.NewsSource = feed.NewFetcher(cfg.Feeds, cfg.Pipeline.FeedTimeout, nil,
		baseLogger.With("component", "feed"))
	if len(cfg.ScrapeTargets) > 0 {
		targets := make([]feed.ScrapeTarget, 0, len(cfg.ScrapeTargets))
		for _, t := range cfg.ScrapeTargets {
			targets = append(targets, feed.ScrapeTarget{
				Name:            t.Name,
				URL:             t.URL,
				TitleSelector:   t.TitleSelector,
				SummarySelector: t.SummarySelector,
			})
		}
		scraper := feed.NewScraper(targets, cfg.Pipeline.FeedTimeout, nil,
			baseLogger.With("component", "scrape"))
		source = feed.NewMultiSource(source, scraper)
	}

	chain := market.NewChain(baseLogger.With("component", "market"),
		market.NewYahooProvider(nil),
		market.NewStooqProvider(nil, cfg.Market.StooqSymbols),
		market.NewGoogleProvider(nil, cfg.Market.GoogleSymbols),
	)

	modelClient := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.RequestTimeout,
		cfg.Ollama.ReadyTimeout, baseLogger.With("component", "ollama"))

	ingestor := ingest.NewIngestor(store, cfg.Pipeline.MaxArticleWords,
		baseLogger.With("component", "ingest"))

	filter := analysis.NewFilter(modelClient, cfg.Ollama.FilterModel,
		cfg.Ollama.FilterTemperature, cfg.Pipeline.RelevanceCutoff,
		cfg.Pipeline.FilterConcurrency, baseLogger.With("component", "filter"))

	engine := analysis.NewEngine(modelClient, cfg.Ollama.AnalysisModel,
		cfg.Ollama.AnalysisTemperature, baseLogger.With("component", "engine"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(
			cfg.Notifications.Telegram.BotToken,
			cfg.Notifications.Telegram.ChatID,
		)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       source,
		Quotes:       chain,
		Ingestor:     ingestor,
		Filter:       filter,
		Engine:       engine,
		ModelClient:  modelClient,
		ArticleStore: store,
		QuoteAudit:   store,
		History:      store,
		RunLogs:      store,
		Notifier:     notifier,
		Logger:       baseLogger.With("component", "pipeline"),
	}, usecase.PipelineConfig{
		Tickers:        cfg.Market.Tickers,
		RequiredModels: []string{cfg.Ollama.FilterModel, cfg.Ollama.AnalysisModel},
		HistoryLimit:   cfg.Pipeline.HistoryLimit,
		Retention:      cfg.Pipeline.Retention,
	})

	return &Application{cfg: cfg, store: store, pipeline: pipeline, logger: baseLogger}, nil
}

// Run executes either a single pipeline run (no cron configured) or the
// recurring schedule until the process is signalled.
func (a *Application) Run(ctx context.Context) error {
	defer a.store.Close()

	if a.cfg.Scheduler.CronExpression == "" {
		return a.pipeline.Run(ctx)
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-stop:
	}

	return sched.Stop(context.Background())
}
