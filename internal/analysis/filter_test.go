package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ollama"
	"InvestRadar/internal/ports"
)

// fakeModel answers Complete from a prompt-matching table.
type fakeModel struct {
	respond func(model, prompt string) (string, error)
}

func (f *fakeModel) Complete(_ context.Context, model, prompt string, _ ports.CompletionOptions) (string, error) {
	return f.respond(model, prompt)
}

func (f *fakeModel) WaitReady(context.Context, []string) error { return nil }

func testArticle(title string) domain.Article {
	return domain.Article{
		Title:       title,
		Body:        "body of " + title,
		URL:         "https://example.org/" + title,
		ContentHash: "hash-" + title,
	}
}

func TestFilterThresholdBoundaryInclusive(t *testing.T) {
	t.Parallel()

	model := &fakeModel{respond: func(_, prompt string) (string, error) {
		if strings.Contains(prompt, "exactly-at-cutoff") {
			return `{"relevance": 5, "sentiment": "neutral", "tickers": []}`, nil
		}
		return `{"relevance": 4, "sentiment": "neutral", "tickers": []}`, nil
	}}

	f := NewFilter(model, "phi3:mini", 0.2, 0.5, 2, nil)
	results, err := f.Run(context.Background(), []domain.Article{
		testArticle("exactly-at-cutoff"),
		testArticle("just-below"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.InDelta(t, 0.5, results[0].Score, 1e-9)
	assert.True(t, results[0].Kept, "score equal to cutoff must be kept")
	assert.InDelta(t, 0.4, results[1].Score, 1e-9)
	assert.False(t, results[1].Kept)
}

func TestFilterMalformedOutputScoresZero(t *testing.T) {
	t.Parallel()

	model := &fakeModel{respond: func(_, prompt string) (string, error) {
		if strings.Contains(prompt, "broken") {
			return "I cannot answer in JSON, sorry.", nil
		}
		return `{"relevance": 8, "sentiment": "bullish", "tickers": ["SPY"]}`, nil
	}}

	f := NewFilter(model, "phi3:mini", 0.2, 0.5, 1, nil)
	results, err := f.Run(context.Background(), []domain.Article{
		testArticle("broken"),
		testArticle("fine"),
	})
	require.NoError(t, err, "malformed output must not abort the batch")
	require.Len(t, results, 2)

	assert.Zero(t, results[0].Score)
	assert.False(t, results[0].Kept)
	assert.True(t, results[1].Kept, "remaining articles are still scored")
}

func TestFilterConnectionFailureIsFatal(t *testing.T) {
	t.Parallel()

	model := &fakeModel{respond: func(string, string) (string, error) {
		return "", &ollama.RequestError{Kind: ollama.FailureConnection, Err: errors.New("connection refused")}
	}}

	f := NewFilter(model, "phi3:mini", 0.2, 0.5, 2, nil)
	_, err := f.Run(context.Background(), []domain.Article{testArticle("any")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relevance filter")
}

func TestFilterTimeoutDegradesToZero(t *testing.T) {
	t.Parallel()

	model := &fakeModel{respond: func(_, prompt string) (string, error) {
		if strings.Contains(prompt, "slow") {
			return "", &ollama.RequestError{Kind: ollama.FailureTimeout, Err: errors.New("deadline exceeded")}
		}
		return `{"relevance": 9}`, nil
	}}

	f := NewFilter(model, "phi3:mini", 0.2, 0.5, 1, nil)
	results, err := f.Run(context.Background(), []domain.Article{
		testArticle("slow"),
		testArticle("fast"),
	})
	require.NoError(t, err)
	assert.False(t, results[0].Kept)
	assert.True(t, results[1].Kept)
}

func TestFilterPreservesInputOrder(t *testing.T) {
	t.Parallel()

	model := &fakeModel{respond: func(string, string) (string, error) {
		return `{"relevance": 6}`, nil
	}}

	articles := make([]domain.Article, 10)
	for i := range articles {
		articles[i] = testArticle(fmt.Sprintf("a%02d", i))
	}

	f := NewFilter(model, "phi3:mini", 0.2, 0.5, 4, nil)
	results, err := f.Run(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, results, len(articles))

	for i, r := range results {
		assert.Equal(t, articles[i].Title, r.Article.Title)
	}
}

func TestFilterStripsMarkdownFences(t *testing.T) {
	t.Parallel()

	model := &fakeModel{respond: func(string, string) (string, error) {
		return "```json\n{\"relevance\": 7, \"sentiment\": \"bearish\"}\n```", nil
	}}

	f := NewFilter(model, "phi3:mini", 0.2, 0.5, 1, nil)
	results, err := f.Run(context.Background(), []domain.Article{testArticle("fenced")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Kept)
	assert.Equal(t, "bearish", results[0].Sentiment)
}
