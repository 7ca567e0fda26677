package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// Ingestor normalizes raw articles, fingerprints them, and persists new ones.
// Dedup happens on two levels: within the batch (the same story appears on
// multiple feeds) and against the store (cross-run).
type Ingestor struct {
	store    ports.ArticleStore
	maxWords int
	logger   *slog.Logger
}

// NewIngestor wires the store; maxWords bounds the persisted body size.
func NewIngestor(store ports.ArticleStore, maxWords int, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: store, maxWords: maxWords, logger: logger}
}

// Ingest persists the deduplicated batch. It returns the articles that are
// new this run plus the count of stored rows. A storage failure on one
// article drops that article and continues; it is not fatal to the batch.
func (i *Ingestor) Ingest(ctx context.Context, raw []domain.Article) ([]domain.Article, int, error) {
	seen := make(map[string]bool, len(raw))
	var fresh []domain.Article
	stored := 0
	attempts := 0
	writeFailures := 0

	for _, article := range raw {
		normalized := Normalize(article, i.maxWords)
		if normalized.Title == "" && normalized.Body == "" {
			continue
		}

		if seen[normalized.ContentHash] {
			continue
		}
		seen[normalized.ContentHash] = true

		attempts++
		inserted, err := i.store.SaveArticle(ctx, normalized)
		if err != nil {
			writeFailures++
			i.warn("article store write failed, dropping article",
				"url", normalized.URL, "error", err)
			continue
		}
		if inserted {
			stored++
			fresh = append(fresh, normalized)
		}
	}

	// Every single write failing means the store is unwritable, which is a
	// run-level condition rather than a per-article one.
	if attempts > 0 && writeFailures == attempts {
		return nil, 0, fmt.Errorf("article store unwritable: %d/%d writes failed", writeFailures, attempts)
	}

	i.info("ingest complete", "raw", len(raw), "new", stored, "write_failures", writeFailures)
	return fresh, stored, nil
}

func (i *Ingestor) info(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Info(msg, args...)
	}
}

func (i *Ingestor) warn(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Warn(msg, args...)
	}
}
