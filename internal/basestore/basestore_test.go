package basestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendSources_ThenLoadSources(t *testing.T) {
	s := New(t.TempDir())

	entries := []SourceEntry{
		{ChunkID: "c1", SourceURI: "file:///a.go", Path: "a.go", ByteEnd: 100, Fingerprint: "fp1"},
		{ChunkID: "c2", SourceURI: "file:///b.go", Path: "b.go", ByteEnd: 200, Fingerprint: "fp2"},
	}
	require.NoError(t, s.AppendSources(entries))

	loaded, err := s.LoadSources()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "c1", loaded[0].ChunkID)
	assert.Equal(t, "c2", loaded[1].ChunkID)
}

func TestAppendSources_AccumulatesAcrossCalls(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.AppendSources([]SourceEntry{{ChunkID: "c1"}}))
	require.NoError(t, s.AppendSources([]SourceEntry{{ChunkID: "c2"}}))

	loaded, err := s.LoadSources()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
}

func TestRewriteSources_ReplacesWholesale(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.AppendSources([]SourceEntry{{ChunkID: "c1"}, {ChunkID: "c2"}}))
	require.NoError(t, s.RewriteSources([]SourceEntry{{ChunkID: "c3"}}))

	loaded, err := s.LoadSources()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c3", loaded[0].ChunkID)
}

func TestLoadSources_EmptyWhenNoFile(t *testing.T) {
	s := New(t.TempDir())
	loaded, err := s.LoadSources()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRecomputeAndSaveStats_DerivesFromEntries(t *testing.T) {
	s := New(t.TempDir())
	now := time.Now().UTC()

	entries := []SourceEntry{
		{ByteStart: 0, ByteEnd: 50, IndexedAt: now},
		{ByteStart: 0, ByteEnd: 150, IndexedAt: now.Add(time.Minute)},
	}

	stats, err := s.RecomputeAndSaveStats(entries, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 2, stats.VectorCount)
	assert.EqualValues(t, 200, stats.SizeBytes)

	loaded, err := s.LoadStats()
	require.NoError(t, err)
	assert.Equal(t, stats.DocumentCount, loaded.DocumentCount)
	assert.Equal(t, stats.SizeBytes, loaded.SizeBytes)
}

func TestModelInfo_SaveAndLoadRoundTrips(t *testing.T) {
	s := New(t.TempDir())

	_, ok, err := s.LoadModelInfo()
	require.NoError(t, err)
	assert.False(t, ok)

	info := ModelInfo{ModelID: "nomic-embed-text", Dimension: 768, MaxInputTokens: 8192}
	require.NoError(t, s.SaveModelInfo(info))

	loaded, ok, err := s.LoadModelInfo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, info.ModelID, loaded.ModelID)
	assert.Equal(t, info.Dimension, loaded.Dimension)
}
