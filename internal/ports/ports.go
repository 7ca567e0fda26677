package ports

import (
	"context"
	"time"

	"InvestRadar/internal/domain"
)

// NewsSource pulls raw articles from the configured feeds.
type NewsSource interface {
	FetchAll(ctx context.Context) []domain.Article
}

// QuoteSource resolves quotes for a batch of tickers, in one priority tier
// of the fallback chain.
type QuoteSource interface {
	Name() string
	FetchQuotes(ctx context.Context, tickers []string) ([]domain.Quote, error)
}

// QuoteFetcher resolves the run's ticker list through the fallback chain,
// reporting tickers no source could satisfy.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, tickers []string) (quotes []domain.Quote, missing []string)
}

// ArticleStore persists deduplicated articles keyed by content hash. Dedup
// is carried by SaveArticle's inserted flag; there is no separate lookup.
type ArticleStore interface {
	SaveArticle(ctx context.Context, article domain.Article) (inserted bool, err error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryStore keeps the append-only recommendation record.
type HistoryStore interface {
	AppendRecommendation(ctx context.Context, rec domain.Recommendation) (int64, error)
	RecentRecommendations(ctx context.Context, limit int) ([]domain.Recommendation, error)
}

// QuoteAuditStore records which source satisfied each ticker in a run.
type QuoteAuditStore interface {
	SaveQuotes(ctx context.Context, runID string, quotes []domain.Quote) error
}

// RunLogStore records per-run audit rows.
type RunLogStore interface {
	CreateRunLog(ctx context.Context, runID string, startedAt time.Time) error
	UpdateRunLog(ctx context.Context, log domain.RunLog) error
}

// ModelClient is the shared wrapper around the local inference backend,
// used by both analysis stages.
type ModelClient interface {
	Complete(ctx context.Context, model, prompt string, opts CompletionOptions) (string, error)
	WaitReady(ctx context.Context, requiredModels []string) error
}

// CompletionOptions tune a single model request.
type CompletionOptions struct {
	System      string
	Temperature float64
	JSONFormat  bool
	MaxTokens   int
}

// Notifier hands the finished recommendation to the delivery collaborator.
type Notifier interface {
	PublishRecommendation(ctx context.Context, rec domain.Recommendation) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
