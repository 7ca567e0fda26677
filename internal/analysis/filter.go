package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ollama"
	"InvestRadar/internal/ports"
)

// Filter is the cheap first-pass model stage pruning articles before the
// expensive deep analysis.
type Filter struct {
	client      ports.ModelClient
	model       string
	temperature float64
	cutoff      float64
	concurrency int
	logger      *slog.Logger
}

// NewFilter wires the shared model client with the lightweight model.
// cutoff is the inclusive keep threshold on the 0-1 score scale.
func NewFilter(client ports.ModelClient, model string, temperature, cutoff float64, concurrency int, logger *slog.Logger) *Filter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Filter{
		client:      client,
		model:       model,
		temperature: temperature,
		cutoff:      cutoff,
		concurrency: concurrency,
		logger:      logger,
	}
}

type filterVerdict struct {
	Relevance int      `json:"relevance"`
	Sentiment string   `json:"sentiment"`
	Tickers   []string `json:"tickers"`
	KeyFacts  []string `json:"key_facts"`
}

// Run scores every article with bounded concurrency, each request writing
// into its own index-addressed slot so output order matches input order.
// Malformed model output degrades that article to score 0 and the batch
// continues; a backend that cannot be reached at all fails the whole run,
// since there is no meaningful recommendation without filtering.
func (f *Filter) Run(ctx context.Context, articles []domain.Article) ([]domain.FilterResult, error) {
	results := make([]domain.FilterResult, len(articles))
	errs := make([]error, len(articles))
	sem := make(chan struct{}, f.concurrency)

	var wg sync.WaitGroup
	for i := range articles {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[slot], errs[slot] = f.scoreArticle(ctx, articles[slot])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("relevance filter: %w", err)
		}
	}

	kept := 0
	for _, r := range results {
		if r.Kept {
			kept++
		}
	}
	f.info("filtering complete", "total", len(articles), "kept", kept)
	return results, nil
}

func (f *Filter) scoreArticle(ctx context.Context, article domain.Article) (domain.FilterResult, error) {
	result := domain.FilterResult{Article: article}

	raw, err := f.client.Complete(ctx, f.model, buildFilterPrompt(article), ports.CompletionOptions{
		System:      filterSystemPrompt,
		Temperature: f.temperature,
		JSONFormat:  true,
		MaxTokens:   2048,
	})
	if err != nil {
		var reqErr *ollama.RequestError
		if errors.As(err, &reqErr) && reqErr.Kind != ollama.FailureConnection {
			// Degraded call (timeout, server error): conservative drop.
			f.warn("filter call failed, scoring 0", "url", article.URL, "error", err)
			return result, nil
		}
		return result, err
	}

	verdict, ok := decodeVerdict(raw)
	if !ok {
		f.warn("unparseable filter output, scoring 0", "url", article.URL)
		return result, nil
	}

	score := float64(verdict.Relevance) / 10.0
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	result.Score = score
	result.Kept = score >= f.cutoff
	result.Sentiment = verdict.Sentiment
	result.Tickers = verdict.Tickers
	return result, nil
}

func decodeVerdict(raw string) (filterVerdict, bool) {
	var verdict filterVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &verdict); err != nil {
		return filterVerdict{}, false
	}
	return verdict, true
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func (f *Filter) info(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Info(msg, args...)
	}
}

func (f *Filter) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
