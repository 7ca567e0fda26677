package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

const stooqCSVURL = "https://stooq.com/q/d/l/"

// StooqProvider is the secondary quote source. It downloads a month of daily
// closes per ticker as CSV and derives the change percentage from the first
// and last close.
type StooqProvider struct {
	baseURL   string
	client    *http.Client
	symbolMap map[string]string
	now       func() time.Time
}

var _ ports.QuoteSource = (*StooqProvider)(nil)

// NewStooqProvider builds the provider; symbolMap translates configured
// tickers into Stooq notation (missing entries pass through unchanged).
func NewStooqProvider(client *http.Client, symbolMap map[string]string) *StooqProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultQuoteTimeout}
	}
	return &StooqProvider{
		baseURL:   stooqCSVURL,
		client:    client,
		symbolMap: symbolMap,
		now:       time.Now,
	}
}

// Name identifies the provider in Quote.SourceUsed and in logs.
func (p *StooqProvider) Name() string { return "stooq" }

// FetchQuotes resolves tickers one by one. A ticker whose CSV is empty or
// malformed is skipped. A transport or status failure signals the source is
// down rather than a single symbol being unknown, so the remaining tickers
// are not attempted; quotes resolved before the failure are still returned.
func (p *StooqProvider) FetchQuotes(ctx context.Context, tickers []string) ([]domain.Quote, error) {
	now := p.now().UTC()
	from := now.AddDate(0, -1, 0)

	var quotes []domain.Quote
	for _, ticker := range tickers {
		symbol := ticker
		if mapped, ok := p.symbolMap[ticker]; ok {
			symbol = mapped
		}

		csvText, err := p.download(ctx, symbol, from, now)
		if err != nil {
			return quotes, err
		}

		quote, ok := parseStooqCSV(ticker, csvText, now)
		if ok {
			quotes = append(quotes, quote)
		}
	}
	return quotes, nil
}

func (p *StooqProvider) download(ctx context.Context, symbol string, from, to time.Time) (string, error) {
	params := url.Values{}
	params.Set("s", symbol)
	params.Set("d1", from.Format("20060102"))
	params.Set("d2", to.Format("20060102"))
	params.Set("i", "d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			Provider: p.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}
	return string(body), nil
}

// parseStooqCSV extracts the latest close and the month-over-month change
// from a Date,Open,High,Low,Close,Volume export.
func parseStooqCSV(ticker, csvText string, asOf time.Time) (domain.Quote, bool) {
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return domain.Quote{}, false
	}

	closeIdx := -1
	for i, col := range records[0] {
		if col == "Close" {
			closeIdx = i
		}
	}
	if closeIdx < 0 {
		return domain.Quote{}, false
	}

	var closes []float64
	for _, row := range records[1:] {
		if closeIdx >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(row[closeIdx], 64)
		if err != nil {
			continue
		}
		closes = append(closes, v)
	}
	if len(closes) == 0 {
		return domain.Quote{}, false
	}

	last := closes[len(closes)-1]
	first := closes[0]

	quote := domain.Quote{
		Ticker: ticker,
		Price:  decimal.NewFromFloat(last).Round(2),
		AsOf:   asOf,
	}
	if first != 0 {
		change := decimal.NewFromFloat((last - first) / first * 100).Round(2)
		quote.ChangePct = &change
	}
	return quote, true
}
