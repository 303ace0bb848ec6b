package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorerIndex_IndexAndSearch(t *testing.T) {
	idx := NewScorerIndex(DefaultBM25Config())
	ctx := context.Background()

	err := idx.Index(ctx, []*Document{
		{ID: "d1", Content: "the quick brown fox jumps over the lazy dog"},
		{ID: "d2", Content: "a lazy cat sleeps all day"},
		{ID: "d3", Content: "fox and hound chase each other"},
	})
	require.NoError(t, err)

	results, err := idx.Search(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].DocID, results[1].DocID}
	assert.Contains(t, ids, "d1")
	assert.Contains(t, ids, "d3")
}

func TestScorerIndex_ScoresDescendingAndTieBreakByID(t *testing.T) {
	idx := NewScorerIndex(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "z", Content: "cache invalidation is hard"},
		{ID: "a", Content: "cache invalidation is hard"},
	}))

	results, err := idx.Search(ctx, "cache invalidation", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-9)
	assert.Equal(t, "a", results[0].DocID)
}

func TestScorerIndex_DeleteRemovesFromPostings(t *testing.T) {
	idx := NewScorerIndex(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "d1", Content: "retrieval augmented generation"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"d1"}))

	results, err := idx.Search(ctx, "retrieval", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScorerIndex_ReindexReplacesDocument(t *testing.T) {
	idx := NewScorerIndex(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{{ID: "d1", Content: "alpha beta"}}))
	require.NoError(t, idx.Index(ctx, []*Document{{ID: "d1", Content: "gamma delta"}}))

	results, err := idx.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "gamma", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestScorerIndex_EmptyQueryReturnsNoResults(t *testing.T) {
	idx := NewScorerIndex(DefaultBM25Config())
	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScorerIndex_SaveAndLoadRoundTrips(t *testing.T) {
	idx := NewScorerIndex(DefaultBM25Config())
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "d1", Content: "hybrid search combines bm25 and vectors"},
	}))

	path := filepath.Join(t.TempDir(), "bm25", "index.bin")
	require.NoError(t, idx.Save(path))

	loaded := NewScorerIndex(DefaultBM25Config())
	require.NoError(t, loaded.Load(path))

	results, err := loaded.Search(ctx, "hybrid vectors", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocID)
}

func TestScorerIndex_StatsReportsDocumentAndTermCounts(t *testing.T) {
	idx := NewScorerIndex(DefaultBM25Config())
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "d1", Content: "alpha beta gamma"},
		{ID: "d2", Content: "alpha delta"},
	}))

	stats := idx.Stats()
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Greater(t, stats.TermCount, 0)
	assert.Greater(t, stats.AvgDocLength, 0.0)
}
