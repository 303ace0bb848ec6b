package kgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadNodes(t *testing.T) {
	s := New(t.TempDir())

	err := s.AppendNodes([]Node{
		{ID: "file:main.go", Kind: "file", Name: "main.go"},
		{ID: "sym:go:main.go:function:main", Kind: "function", Name: "main", Framework: "gin"},
	})
	require.NoError(t, err)

	nodes, err := s.ReadAllNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "file:main.go", nodes[0].ID)
	assert.Equal(t, "gin", nodes[1].Framework)
}

func TestAppendAndReadEdges(t *testing.T) {
	s := New(t.TempDir())

	err := s.AppendEdges([]Edge{
		{From: "file:main.go", To: "sym:go:main.go:function:main", Kind: "defines"},
	})
	require.NoError(t, err)

	edges, err := s.ReadAllEdges()
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "defines", edges[0].Kind)
}

func TestClear_RemovesAllArtifacts(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.AppendNodes([]Node{{ID: "file:a", Kind: "file", Name: "a"}}))
	require.NoError(t, s.WriteStats(Stats{NodeCount: 1}))
	assert.True(t, s.Exists())

	require.NoError(t, s.Clear())
	assert.False(t, s.Exists())

	nodes, err := s.ReadAllNodes()
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestReadStats_EmptyWhenNeverWritten(t *testing.T) {
	s := New(t.TempDir())
	stats, err := s.ReadStats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestWriteAndReadStats_Roundtrip(t *testing.T) {
	s := New(t.TempDir())
	want := ComputeStats(5, 7)
	require.NoError(t, s.WriteStats(want))

	got, err := s.ReadStats()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
