package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InvestRadar/internal/domain"
)

const listingPage = `<html><body>
<div class="story"><a class="headline" href="/news/fed-holds">Fed holds rates</a>
<p class="summary">The Fed held rates steady.</p></div>
<div class="story"><a class="headline" href="https://other.example.org/oil">Oil climbs</a>
<p class="summary">Crude rose on supply fears.</p></div>
<div class="story"><a class="headline" href="/news/no-summary">Chip rally extends</a></div>
</body></html>`

func serveHTML(t *testing.T, page string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScraperPairsTitlesAndSummaries(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, listingPage)
	scraper := NewScraper([]ScrapeTarget{{
		Name:            "examplefinance",
		URL:             srv.URL + "/markets",
		TitleSelector:   "a.headline",
		SummarySelector: "p.summary",
	}}, 5*time.Second, nil, nil)

	articles := scraper.FetchAll(context.Background())
	require.Len(t, articles, 3)

	assert.Equal(t, "Fed holds rates", articles[0].Title)
	assert.Equal(t, "The Fed held rates steady.", articles[0].Body)
	assert.Equal(t, srv.URL+"/news/fed-holds", articles[0].URL)
	assert.Equal(t, "examplefinance", articles[0].Source)

	// Absolute links pass through untouched.
	assert.Equal(t, "https://other.example.org/oil", articles[1].URL)

	// Fewer summaries than titles leaves the tail body-less.
	assert.Equal(t, "Chip rally extends", articles[2].Title)
	assert.Empty(t, articles[2].Body)
	assert.False(t, articles[2].FetchedAt.IsZero())
}

func TestScraperSkipsFailingTarget(t *testing.T) {
	t.Parallel()

	healthy := serveHTML(t, listingPage)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(broken.Close)

	scraper := NewScraper([]ScrapeTarget{
		{Name: "blocked", URL: broken.URL, TitleSelector: "a.headline", SummarySelector: "p.summary"},
		{Name: "open", URL: healthy.URL, TitleSelector: "a.headline", SummarySelector: "p.summary"},
	}, 5*time.Second, nil, nil)

	articles := scraper.FetchAll(context.Background())
	require.Len(t, articles, 3)
	assert.Equal(t, "open", articles[0].Source)
}

func TestScraperNoSelectorMatches(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><body><p>nothing structured here</p></body></html>`)
	scraper := NewScraper([]ScrapeTarget{{
		URL:             srv.URL,
		TitleSelector:   "a.headline",
		SummarySelector: "p.summary",
	}}, 5*time.Second, nil, nil)

	assert.Empty(t, scraper.FetchAll(context.Background()))
}

type staticSource struct {
	articles []domain.Article
}

func (s staticSource) FetchAll(context.Context) []domain.Article { return s.articles }

func TestMultiSourceConcatenatesInOrder(t *testing.T) {
	t.Parallel()

	first := staticSource{articles: []domain.Article{{Title: "from feed"}}}
	second := staticSource{articles: []domain.Article{{Title: "from scrape"}}}

	combined := NewMultiSource(first, second)
	articles := combined.FetchAll(context.Background())

	require.Len(t, articles, 2)
	assert.Equal(t, "from feed", articles[0].Title)
	assert.Equal(t, "from scrape", articles[1].Title)
}
