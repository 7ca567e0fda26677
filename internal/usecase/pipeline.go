package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// ArticleIngestor normalizes, deduplicates, and persists raw articles.
type ArticleIngestor interface {
	Ingest(ctx context.Context, raw []domain.Article) (fresh []domain.Article, stored int, err error)
}

// RelevanceFilter is the cheap-model pass.
type RelevanceFilter interface {
	Run(ctx context.Context, articles []domain.Article) ([]domain.FilterResult, error)
}

// RecommendationEngine is the deep-model pass.
type RecommendationEngine interface {
	Generate(ctx context.Context, runID string, kept []domain.FilterResult, quotes []domain.Quote, history []domain.Recommendation) (domain.Recommendation, error)
}

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.NewsSource
	Quotes       ports.QuoteFetcher
	Ingestor     ArticleIngestor
	Filter       RelevanceFilter
	Engine       RecommendationEngine
	ModelClient  ports.ModelClient
	ArticleStore ports.ArticleStore
	QuoteAudit   ports.QuoteAuditStore
	History      ports.HistoryStore
	RunLogs      ports.RunLogStore
	Notifier     ports.Notifier
	Logger       *slog.Logger
}

// PipelineConfig is the subset of settings the driver itself needs.
type PipelineConfig struct {
	Tickers        []string
	RequiredModels []string
	HistoryLimit   int
	Retention      time.Duration
}

// Pipeline orchestrates one full run: fetch, ingest, filter, recommend,
// notify. It owns the continue-versus-abort decision per failure kind; the
// collaborators surface typed outcomes and never abort on per-item problems
// themselves.
type Pipeline struct {
	deps PipelineDeps
	cfg  PipelineConfig
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	return &Pipeline{deps: deps, cfg: cfg}
}

// Run executes a single pipeline run. A fatal condition (model backend
// unreachable, store unwritable) aborts with a diagnostic before anything is
// appended to history; degraded runs still produce a recommendation whose
// source_used/model_used fields let a reviewer judge reliability.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	log := p.deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", runID)
	log.Info("pipeline start")

	startedAt := time.Now().UTC()
	if p.deps.RunLogs != nil {
		if err := p.deps.RunLogs.CreateRunLog(ctx, runID, startedAt); err != nil {
			log.Warn("run log creation failed", "error", err)
		}
	}

	runLog := domain.RunLog{RunID: runID, StartedAt: startedAt, Status: domain.RunStatusRunning}
	err := p.run(ctx, runID, log, &runLog)

	runLog.FinishedAt = time.Now().UTC()
	if err != nil {
		runLog.Status = domain.RunStatusFailed
		runLog.Error = err.Error()
		log.Error("pipeline failed", "error", err)
	} else {
		runLog.Status = domain.RunStatusSuccess
		log.Info("pipeline complete")
	}

	if p.deps.RunLogs != nil {
		if logErr := p.deps.RunLogs.UpdateRunLog(ctx, runLog); logErr != nil {
			log.Warn("run log update failed", "error", logErr)
		}
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, runID string, log *slog.Logger, runLog *domain.RunLog) error {
	// The backend may still be loading models; wait bounded, then abort if
	// it never becomes ready. Without the models there is no run.
	if err := p.deps.ModelClient.WaitReady(ctx, p.cfg.RequiredModels); err != nil {
		return fmt.Errorf("model backend not ready: %w", err)
	}

	if p.cfg.Retention > 0 {
		cutoff := time.Now().UTC().Add(-p.cfg.Retention)
		if pruned, err := p.deps.ArticleStore.PruneOlderThan(ctx, cutoff); err != nil {
			log.Warn("article prune failed", "error", err)
		} else if pruned > 0 {
			log.Info("articles pruned", "count", pruned)
		}
	}

	raw := p.deps.Source.FetchAll(ctx)
	runLog.ArticlesFetched = len(raw)

	quotes, missing := p.deps.Quotes.FetchQuotes(ctx, p.cfg.Tickers)
	runLog.QuotesResolved = len(quotes)
	log.Info("fetch complete", "articles", len(raw), "quotes", len(quotes), "tickers_missing", len(missing))

	fresh, stored, err := p.deps.Ingestor.Ingest(ctx, raw)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	runLog.ArticlesNew = stored

	if p.deps.QuoteAudit != nil {
		if err := p.deps.QuoteAudit.SaveQuotes(ctx, runID, quotes); err != nil {
			log.Warn("quote audit write failed", "error", err)
		}
	}

	results, err := p.deps.Filter.Run(ctx, fresh)
	if err != nil {
		return err
	}
	kept := keptResults(results)
	runLog.ArticlesKept = len(kept)

	var history []domain.Recommendation
	if p.deps.History != nil {
		history, err = p.deps.History.RecentRecommendations(ctx, p.cfg.HistoryLimit)
		if err != nil {
			// History enriches the prompt but never blocks generation.
			log.Warn("history unavailable", "error", err)
			history = nil
		}
	}

	rec, err := p.deps.Engine.Generate(ctx, runID, kept, quotes, history)
	if err != nil {
		return err
	}

	recID, err := p.deps.History.AppendRecommendation(ctx, rec)
	if err != nil {
		return fmt.Errorf("append recommendation: %w", err)
	}
	runLog.RecommendationID = recID

	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.PublishRecommendation(ctx, rec); err != nil {
			// Delivery has its own retry policy downstream; the run already
			// produced and recorded its recommendation.
			log.Warn("notification failed", "error", err)
		}
	}
	return nil
}

func keptResults(results []domain.FilterResult) []domain.FilterResult {
	var kept []domain.FilterResult
	for _, r := range results {
		if r.Kept {
			kept = append(kept, r)
		}
	}
	return kept
}
