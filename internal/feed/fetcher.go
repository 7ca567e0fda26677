package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// Fetcher pulls articles from a fixed list of RSS/Atom feeds. Feeds are
// fetched concurrently, each writing into its own result slot; a feed that
// fails to download or parse is logged and skipped, never fatal to the run.
type Fetcher struct {
	feedURLs []string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.NewsSource = (*Fetcher)(nil)

// NewFetcher wires the configured feed URLs with an optional HTTP client.
func NewFetcher(feedURLs []string, timeout time.Duration, client *http.Client, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		feedURLs: feedURLs,
		timeout:  timeout,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchAll scatters one fetch per feed and gathers partial results in input
// order. It never returns an error: the worst case is an empty slice.
func (f *Fetcher) FetchAll(ctx context.Context) []domain.Article {
	slots := make([][]domain.Article, len(f.feedURLs))

	var wg sync.WaitGroup
	for i, url := range f.feedURLs {
		wg.Add(1)
		go func(slot int, url string) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			articles, err := f.fetchFeed(fetchCtx, url)
			if err != nil {
				f.warn("feed fetch failed", "url", url, "error", err)
				return
			}
			slots[slot] = articles
			f.debug("feed fetched", "url", url, "count", len(articles))
		}(i, url)
	}
	wg.Wait()

	var all []domain.Article
	for _, slot := range slots {
		all = append(all, slot...)
	}
	return all
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) ([]domain.Article, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = "InvestRadar/1.0"

	parsed, err := parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}

	source := parsed.Title
	if source == "" {
		source = url
	}

	fetchedAt := f.now().UTC()
	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		body := item.Description
		if body == "" {
			body = item.Content
		}

		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		}

		articles = append(articles, domain.Article{
			Source:      source,
			URL:         item.Link,
			Title:       item.Title,
			Body:        body,
			PublishedAt: publishedAt,
			FetchedAt:   fetchedAt,
		})
	}
	return articles, nil
}

func (f *Fetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
