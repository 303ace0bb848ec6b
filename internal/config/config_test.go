package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_PassValidation(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 1.2, cfg.Search.BM25K1)
	assert.Equal(t, 0.75, cfg.Search.BM25B)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "search:\n  bm25_weight: 0.7\n  vector_weight: 0.3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gik.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Search.BM25Weight)
	assert.Equal(t, 0.3, cfg.Search.VectorWeight)
	// Untouched fields keep their defaults.
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestLoad_CallSiteOverridesBeatProjectConfig(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "search:\n  bm25_weight: 0.7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gik.yaml"), []byte(yamlContent), 0o644))

	overrides := &Config{Search: SearchConfig{BM25Weight: 0.9}}
	cfg, err := Load(dir, overrides)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.BM25Weight)
}

func TestLoad_EnvOverridesBeatEverything(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "search:\n  bm25_weight: 0.7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gik.yaml"), []byte(yamlContent), 0o644))

	t.Setenv("GIK_BM25_WEIGHT", "0.33")
	overrides := &Config{Search: SearchConfig{BM25Weight: 0.9}}

	cfg, err := Load(dir, overrides)
	require.NoError(t, err)
	assert.Equal(t, 0.33, cfg.Search.BM25Weight)
}

func TestValidate_RejectsBadChunkOverlap(t *testing.T) {
	cfg := Defaults()
	cfg.Chunk.ChunkOverlap = cfg.Chunk.ChunkSize
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroDimensions(t *testing.T) {
	cfg := Defaults()
	cfg.Embeddings.Dimensions = 0
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := Defaults()
	cfg.Search.BM25Weight = 0.42

	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := loadYAMLIfExists(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 0.42, loaded.Search.BM25Weight)
}
