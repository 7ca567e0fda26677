package domain

import "time"

// Article is a core entity describing one news item pulled from a feed.
// ContentHash fingerprints the normalized title+body; two articles with the
// same hash are the same logical story regardless of URL variant.
type Article struct {
	Source      string
	URL         string
	Title       string
	Body        string
	PublishedAt time.Time
	FetchedAt   time.Time
	ContentHash string
}

// FilterResult captures the cheap-model verdict on a single article.
// Sentiment and Tickers are enrichment only; either may be empty.
type FilterResult struct {
	Article   Article
	Score     float64
	Kept      bool
	Sentiment string
	Tickers   []string
}
