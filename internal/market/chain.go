package market

import (
	"context"
	"fmt"
	"log/slog"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// ProviderError reports a source-level failure (network error, rate limit,
// malformed response). The chain drops the provider for the remainder of the
// current run when it sees one.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("market provider %s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("market provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Chain tries capability-equivalent quote providers in priority order per
// unresolved ticker batch, recording which provider satisfied each ticker.
type Chain struct {
	providers []ports.QuoteSource
	logger    *slog.Logger
}

// NewChain wires providers in priority order (index 0 is primary).
func NewChain(logger *slog.Logger, providers ...ports.QuoteSource) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// FetchQuotes resolves as many tickers as possible. A failing provider is
// skipped for the remaining unresolved tickers of this run; tickers no
// provider could resolve come back in missing. The call itself never fails:
// an empty quote set with everything missing is still a valid (degraded)
// outcome for the caller to judge.
func (c *Chain) FetchQuotes(ctx context.Context, tickers []string) (quotes []domain.Quote, missing []string) {
	unresolved := append([]string(nil), tickers...)
	resolved := make(map[string]bool, len(tickers))

	for _, provider := range c.providers {
		if len(unresolved) == 0 {
			break
		}

		// A failing provider may still return the quotes it resolved before
		// the failure; those count, and the rest fall through to the next tier.
		batch, err := provider.FetchQuotes(ctx, unresolved)

		for _, q := range batch {
			if resolved[q.Ticker] {
				continue
			}
			q.SourceUsed = provider.Name()
			resolved[q.Ticker] = true
			quotes = append(quotes, q)
			c.debug("ticker resolved", "ticker", q.Ticker, "provider", provider.Name())
		}

		remaining := unresolved[:0]
		for _, t := range unresolved {
			if !resolved[t] {
				remaining = append(remaining, t)
			}
		}
		unresolved = remaining

		if err != nil {
			c.warn("quote provider failed, falling back",
				"provider", provider.Name(), "unresolved", len(unresolved), "error", err)
		}
	}

	if len(unresolved) > 0 {
		missing = append(missing, unresolved...)
		c.warn("market data unavailable", "tickers", missing)
	}
	return quotes, missing
}

func (c *Chain) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Chain) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
