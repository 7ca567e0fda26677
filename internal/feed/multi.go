package feed

import (
	"context"
	"sync"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// MultiSource fans one FetchAll out to several news sources and concatenates
// their results in source order. Dedup across sources is the ingestor's job.
type MultiSource struct {
	sources []ports.NewsSource
}

var _ ports.NewsSource = (*MultiSource)(nil)

// NewMultiSource combines sources; index 0 comes first in the output.
func NewMultiSource(sources ...ports.NewsSource) *MultiSource {
	return &MultiSource{sources: sources}
}

// FetchAll queries every source concurrently, one result slot per source.
func (m *MultiSource) FetchAll(ctx context.Context) []domain.Article {
	slots := make([][]domain.Article, len(m.sources))

	var wg sync.WaitGroup
	for i, source := range m.sources {
		wg.Add(1)
		go func(slot int, source ports.NewsSource) {
			defer wg.Done()
			slots[slot] = source.FetchAll(ctx)
		}(i, source)
	}
	wg.Wait()

	var all []domain.Article
	for _, slot := range slots {
		all = append(all, slot...)
	}
	return all
}
