package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InvestRadar/internal/domain"
)

type stubProvider struct {
	name   string
	quotes map[string]domain.Quote
	err    error
	calls  [][]string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FetchQuotes(_ context.Context, tickers []string) ([]domain.Quote, error) {
	s.calls = append(s.calls, append([]string(nil), tickers...))
	var out []domain.Quote
	for _, t := range tickers {
		if q, ok := s.quotes[t]; ok {
			out = append(out, q)
		}
	}
	return out, s.err
}

func quoteFor(ticker string, price float64, withChange bool) domain.Quote {
	q := domain.Quote{
		Ticker: ticker,
		Price:  decimal.NewFromFloat(price),
		AsOf:   time.Now(),
	}
	if withChange {
		change := decimal.NewFromFloat(1.5)
		q.ChangePct = &change
	}
	return q
}

func TestChainFallbackOrdering(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "yahoo", err: &ProviderError{Provider: "yahoo", Err: errors.New("rate limited")}}
	secondary := &stubProvider{name: "stooq", quotes: map[string]domain.Quote{
		"SPY": quoteFor("SPY", 510.0, true),
	}}
	tertiary := &stubProvider{name: "google_finance"}

	chain := NewChain(nil, primary, secondary, tertiary)
	quotes, missing := chain.FetchQuotes(context.Background(), []string{"SPY"})

	require.Len(t, quotes, 1)
	assert.Equal(t, "stooq", quotes[0].SourceUsed)
	assert.Empty(t, missing)
}

func TestChainPartialResolutionAcrossTiers(t *testing.T) {
	t.Parallel()

	// Primary resolves 2 of 3; secondary resolves the 3rd with price only.
	primary := &stubProvider{name: "yahoo", quotes: map[string]domain.Quote{
		"SPY": quoteFor("SPY", 510.0, true),
		"QQQ": quoteFor("QQQ", 430.0, true),
	}}
	secondary := &stubProvider{name: "stooq", quotes: map[string]domain.Quote{
		"^GSPC": quoteFor("^GSPC", 5100.0, false),
	}}
	tertiary := &stubProvider{name: "google_finance"}

	chain := NewChain(nil, primary, secondary, tertiary)
	quotes, missing := chain.FetchQuotes(context.Background(), []string{"SPY", "QQQ", "^GSPC"})

	require.Len(t, quotes, 3)
	assert.Empty(t, missing)

	bySource := map[string]string{}
	var withoutChange []string
	for _, q := range quotes {
		bySource[q.Ticker] = q.SourceUsed
		if q.ChangePct == nil {
			withoutChange = append(withoutChange, q.Ticker)
		}
	}
	assert.Equal(t, "yahoo", bySource["SPY"])
	assert.Equal(t, "yahoo", bySource["QQQ"])
	assert.Equal(t, "stooq", bySource["^GSPC"])
	assert.Equal(t, []string{"^GSPC"}, withoutChange)

	// The secondary was asked only about the unresolved ticker.
	require.Len(t, secondary.calls, 1)
	assert.Equal(t, []string{"^GSPC"}, secondary.calls[0])
}

func TestChainReportsMissingAfterAllTiers(t *testing.T) {
	t.Parallel()

	failed := errors.New("connection refused")
	primary := &stubProvider{name: "yahoo", err: failed}
	secondary := &stubProvider{name: "stooq", err: failed}
	tertiary := &stubProvider{name: "google_finance", err: failed}

	chain := NewChain(nil, primary, secondary, tertiary)
	quotes, missing := chain.FetchQuotes(context.Background(), []string{"SPY", "QQQ"})

	assert.Empty(t, quotes)
	assert.ElementsMatch(t, []string{"SPY", "QQQ"}, missing)
}

func TestChainKeepsPartialBatchFromFailingProvider(t *testing.T) {
	t.Parallel()

	// Primary resolves SPY, then dies mid-batch. SPY must stay attributed to
	// it and only QQQ falls through to the secondary.
	primary := &stubProvider{
		name:   "yahoo",
		quotes: map[string]domain.Quote{"SPY": quoteFor("SPY", 510.0, true)},
		err:    &ProviderError{Provider: "yahoo", Err: errors.New("connection reset")},
	}
	secondary := &stubProvider{name: "stooq", quotes: map[string]domain.Quote{
		"QQQ": quoteFor("QQQ", 430.0, true),
	}}

	chain := NewChain(nil, primary, secondary)
	quotes, missing := chain.FetchQuotes(context.Background(), []string{"SPY", "QQQ"})

	require.Len(t, quotes, 2)
	assert.Empty(t, missing)

	bySource := map[string]string{}
	for _, q := range quotes {
		bySource[q.Ticker] = q.SourceUsed
	}
	assert.Equal(t, "yahoo", bySource["SPY"])
	assert.Equal(t, "stooq", bySource["QQQ"])

	require.Len(t, secondary.calls, 1)
	assert.Equal(t, []string{"QQQ"}, secondary.calls[0])
}

func TestChainStopsWhenEverythingResolved(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "yahoo", quotes: map[string]domain.Quote{
		"SPY": quoteFor("SPY", 510.0, true),
	}}
	secondary := &stubProvider{name: "stooq"}

	chain := NewChain(nil, primary, secondary)
	quotes, missing := chain.FetchQuotes(context.Background(), []string{"SPY"})

	require.Len(t, quotes, 1)
	assert.Empty(t, missing)
	assert.Empty(t, secondary.calls)
}
