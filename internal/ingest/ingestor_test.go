package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InvestRadar/internal/domain"
)

type fakeStore struct {
	saved    map[string]domain.Article
	failURLs map[string]bool
	failAll  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]domain.Article{}, failURLs: map[string]bool{}}
}

func (s *fakeStore) SaveArticle(_ context.Context, a domain.Article) (bool, error) {
	if s.failAll || s.failURLs[a.URL] {
		return false, errors.New("disk full")
	}
	if _, ok := s.saved[a.ContentHash]; ok {
		return false, nil
	}
	s.saved[a.ContentHash] = a
	return true, nil
}

func (s *fakeStore) PruneOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func article(source, url, title, body string) domain.Article {
	return domain.Article{Source: source, URL: url, Title: title, Body: body, FetchedAt: time.Now()}
}

func TestIngestDedupesWithinBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ing := NewIngestor(store, 2000, nil)

	// Five raw articles across two feeds with one duplicate pair: the same
	// normalized text published on both feeds under different URLs.
	raw := []domain.Article{
		article("cnbc", "https://a/1", "Fed holds rates", "The Fed held rates steady."),
		article("cnbc", "https://a/2", "Oil climbs", "Crude rose 2% on supply fears."),
		article("marketwatch", "https://b/1", "Fed Holds Rates", "The Fed held rates steady."),
		article("marketwatch", "https://b/2", "Tech earnings beat", "Large caps beat estimates."),
		article("marketwatch", "https://b/3", "Bond yields dip", "Yields fell across the curve."),
	}

	fresh, stored, err := ing.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 4, stored)
	assert.Len(t, fresh, 4)
	assert.Len(t, store.saved, 4)
}

func TestIngestIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ing := NewIngestor(store, 2000, nil)

	first := []domain.Article{article("cnbc", "https://a/1", "Fed holds rates", "Steady.")}
	_, stored, err := ing.Ingest(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, 1, stored)

	// Same content under a URL variant must be a no-op.
	second := []domain.Article{article("cnbc", "https://a/1?utm=x", "Fed holds rates", "Steady.")}
	fresh, stored, err := ing.Ingest(context.Background(), second)
	require.NoError(t, err)
	assert.Zero(t, stored)
	assert.Empty(t, fresh)
	assert.Len(t, store.saved, 1)
}

func TestIngestDropsFailedWriteAndContinues(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failURLs["https://a/1"] = true
	ing := NewIngestor(store, 2000, nil)

	raw := []domain.Article{
		article("cnbc", "https://a/1", "Fails", "This write fails."),
		article("cnbc", "https://a/2", "Succeeds", "This write lands."),
	}

	fresh, stored, err := ing.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	require.Len(t, fresh, 1)
	assert.Equal(t, "Succeeds", fresh[0].Title)
}

func TestIngestUnwritableStoreIsFatal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failAll = true
	ing := NewIngestor(store, 2000, nil)

	raw := []domain.Article{
		article("cnbc", "https://a/1", "One", "Body one."),
		article("cnbc", "https://a/2", "Two", "Body two."),
	}

	_, _, err := ing.Ingest(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unwritable")
}

func TestIngestSkipsEmptyArticles(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ing := NewIngestor(store, 2000, nil)

	_, stored, err := ing.Ingest(context.Background(), []domain.Article{
		article("cnbc", "https://a/1", "", ""),
	})
	require.NoError(t, err)
	assert.Zero(t, stored)
}
