package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// ScrapeTarget describes one listing page and the CSS selectors locating
// headlines and summaries on it.
type ScrapeTarget struct {
	Name            string
	URL             string
	TitleSelector   string
	SummarySelector string
}

// scraperUserAgent is a browser string; the targeted sites serve a stripped
// or blocked page to obvious bots.
const scraperUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Scraper pulls articles from listing pages of sites without a usable feed.
// Targets are fetched concurrently, each writing into its own result slot; a
// failing target is logged and skipped, never fatal to the run.
type Scraper struct {
	targets []ScrapeTarget
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.NewsSource = (*Scraper)(nil)

// NewScraper wires the configured targets with an optional HTTP client.
func NewScraper(targets []ScrapeTarget, timeout time.Duration, client *http.Client, logger *slog.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Scraper{
		targets: targets,
		timeout: timeout,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchAll scatters one fetch per target and gathers partial results in
// target order. It never returns an error: the worst case is an empty slice.
func (s *Scraper) FetchAll(ctx context.Context) []domain.Article {
	slots := make([][]domain.Article, len(s.targets))

	var wg sync.WaitGroup
	for i, target := range s.targets {
		wg.Add(1)
		go func(slot int, target ScrapeTarget) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			articles, err := s.scrapeTarget(fetchCtx, target)
			if err != nil {
				s.warn("scrape target failed", "url", target.URL, "error", err)
				return
			}
			slots[slot] = articles
			s.debug("scrape target fetched", "url", target.URL, "count", len(articles))
		}(i, target)
	}
	wg.Wait()

	var all []domain.Article
	for _, slot := range slots {
		all = append(all, slot...)
	}
	return all
}

func (s *Scraper) scrapeTarget(ctx context.Context, target ScrapeTarget) ([]domain.Article, error) {
	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parse target url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("target returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	source := target.Name
	if source == "" {
		source = base.Host
	}

	summaries := doc.Find(target.SummarySelector)
	fetchedAt := s.now().UTC()

	var articles []domain.Article
	doc.Find(target.TitleSelector).Each(func(i int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return
		}

		link := target.URL
		if href, ok := sel.Attr("href"); ok && href != "" {
			if ref, err := url.Parse(href); err == nil {
				link = base.ResolveReference(ref).String()
			}
		}

		// Summaries pair with titles by index; a shorter summary list just
		// leaves the tail of articles body-less.
		var body string
		if i < summaries.Length() {
			body = strings.TrimSpace(summaries.Eq(i).Text())
		}

		articles = append(articles, domain.Article{
			Source:    source,
			URL:       link,
			Title:     title,
			Body:      body,
			FetchedAt: fetchedAt,
		})
	})
	return articles, nil
}

func (s *Scraper) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Scraper) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
