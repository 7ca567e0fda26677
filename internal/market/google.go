package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

const googleQuoteURL = "https://www.google.com/finance/quote/%s"

// GoogleProvider is the tertiary quote source. It scrapes the quote page and
// returns price only; the missing change percentage is an accepted degraded
// result at this position in the chain, not an error.
type GoogleProvider struct {
	urlFormat string
	client    *http.Client
	symbolMap map[string]string
	now       func() time.Time
}

var _ ports.QuoteSource = (*GoogleProvider)(nil)

// NewGoogleProvider builds the provider; symbolMap translates configured
// tickers into EXCHANGE:SYMBOL notation (missing entries pass through).
func NewGoogleProvider(client *http.Client, symbolMap map[string]string) *GoogleProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultQuoteTimeout}
	}
	return &GoogleProvider{
		urlFormat: googleQuoteURL,
		client:    client,
		symbolMap: symbolMap,
		now:       time.Now,
	}
}

// Name identifies the provider in Quote.SourceUsed and in logs.
func (p *GoogleProvider) Name() string { return "google_finance" }

// FetchQuotes scrapes each ticker's quote page. Pages without a price
// element are skipped. A transport or status failure stops the remaining
// tickers and surfaces as a provider-level error alongside any quotes
// resolved before it.
func (p *GoogleProvider) FetchQuotes(ctx context.Context, tickers []string) ([]domain.Quote, error) {
	asOf := p.now().UTC()

	var quotes []domain.Quote
	for _, ticker := range tickers {
		symbol := ticker
		if mapped, ok := p.symbolMap[ticker]; ok {
			symbol = mapped
		}

		price, err := p.scrapePrice(ctx, symbol)
		if err != nil {
			return quotes, err
		}
		if price == nil {
			continue
		}

		quotes = append(quotes, domain.Quote{
			Ticker: ticker,
			Price:  price.Round(2),
			AsOf:   asOf,
		})
	}
	return quotes, nil
}

func (p *GoogleProvider) scrapePrice(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(p.urlFormat, symbol), nil)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)

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

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("parse document: %w", err)}
	}

	// The quote page carries the price in a data-last-price attribute.
	raw, exists := doc.Find("[data-last-price]").First().Attr("data-last-price")
	if !exists {
		return nil, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, nil
	}

	price := decimal.NewFromFloat(value)
	return &price, nil
}
