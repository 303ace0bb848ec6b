package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(ids ...string) []Item {
	its := make([]Item, len(ids))
	for i, id := range ids {
		its[i] = Item{ID: id, Score: 1.0 - float64(i)*0.1}
	}
	return its
}

func TestFuse_TwoListsOverlapRanksHigher(t *testing.T) {
	f := New()

	lists := []List{
		{Name: "bm25", Weight: 1, Items: items("a", "b", "c")},
		{Name: "vector", Weight: 1, Items: items("b", "a", "d")},
	}

	results := f.Fuse(lists)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
}

func TestFuse_DocumentInBothListsOutranksSingleList(t *testing.T) {
	f := New()

	lists := []List{
		{Name: "bm25", Weight: 1, Items: items("a", "b")},
		{Name: "vector", Weight: 1, Items: items("a", "c")},
	}

	results := f.Fuse(lists)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, 2, results[0].ListCount)
}

func TestFuse_TieBreaksByID(t *testing.T) {
	f := New()

	lists := []List{
		{Name: "bm25", Weight: 1, Items: []Item{{ID: "z", Score: 1}}},
		{Name: "vector", Weight: 1, Items: []Item{{ID: "a", Score: 1}}},
	}

	results := f.Fuse(lists)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-12)
	assert.Equal(t, "a", results[0].ID)
}

func TestFuse_ThreeLists(t *testing.T) {
	f := New()

	lists := []List{
		{Name: "code", Weight: 1, Items: items("a", "b")},
		{Name: "docs", Weight: 1, Items: items("c", "a")},
		{Name: "memory", Weight: 1, Items: items("a")},
	}

	results := f.Fuse(lists)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, 3, results[0].ListCount)
}

func TestFuse_EmptyListsReturnsEmptyResult(t *testing.T) {
	f := New()
	results := f.Fuse(nil)
	assert.Empty(t, results)
}

func TestNewWithK_ZeroFallsBackToDefault(t *testing.T) {
	f := NewWithK(0)
	assert.Equal(t, DefaultK, f.K)
}

func TestFuse_PreservesPerListRankAndScore(t *testing.T) {
	f := New()

	lists := []List{
		{Name: "bm25", Weight: 1, Items: []Item{{ID: "a", Score: 5.0}}},
	}

	results := f.Fuse(lists)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Ranks["bm25"])
	assert.Equal(t, 5.0, results[0].ListScores["bm25"])
}
