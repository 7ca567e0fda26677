package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

const (
	yahooQuoteURL       = "https://query1.finance.yahoo.com/v7/finance/quote"
	yahooRatePerSecond  = 2
	defaultQuoteTimeout = 30 * time.Second

	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// YahooProvider is the primary quote source. It resolves the whole ticker
// batch with a single quote-API request.
type YahooProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

var _ ports.QuoteSource = (*YahooProvider)(nil)

// NewYahooProvider builds the provider; client may be nil.
func NewYahooProvider(client *http.Client) *YahooProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultQuoteTimeout}
	}
	return &YahooProvider{
		baseURL: yahooQuoteURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(yahooRatePerSecond), yahooRatePerSecond),
		now:     time.Now,
	}
}

// Name identifies the provider in Quote.SourceUsed and in logs.
func (p *YahooProvider) Name() string { return "yahoo" }

type yahooResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"quoteResponse"`
}

// FetchQuotes queries the batch endpoint once. Tickers absent from the
// response are simply not returned; only transport/decoding problems count
// as a provider failure.
func (p *YahooProvider) FetchQuotes(ctx context.Context, tickers []string) ([]domain.Quote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(tickers, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: p.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var decoded yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	asOf := p.now().UTC()
	quotes := make([]domain.Quote, 0, len(decoded.QuoteResponse.Result))
	for _, r := range decoded.QuoteResponse.Result {
		if r.RegularMarketPrice == nil {
			continue
		}
		q := domain.Quote{
			Ticker: r.Symbol,
			Price:  decimal.NewFromFloat(*r.RegularMarketPrice).Round(2),
			AsOf:   asOf,
		}
		if r.RegularMarketChangePercent != nil {
			change := decimal.NewFromFloat(*r.RegularMarketChangePercent).Round(2)
			q.ChangePct = &change
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
