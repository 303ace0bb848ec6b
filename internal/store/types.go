// Package store provides the vector index (HNSW) and BM25 keyword index
// that back hybrid search over a base's chunks.
package store

import (
	"context"
	"fmt"
)

// Document represents a unit of text to be indexed in BM25. ID is the
// chunk ID; Content is the chunk's searchable text.
type Document struct {
	ID      string
	Content string
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using the Okapi BM25 algorithm.
type BM25Index interface {
	// Index adds or replaces documents in the index.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25, highest
	// score first.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks).
	AllIDs() ([]string, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	// Persistence.
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultBM25Config returns the default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		MinTokenLength: 2,
	}
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector index.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension, matching the active embedding model.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is the HNSW max connections per layer (default: 16).
	M int

	// EfSearch is the HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector index.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides approximate nearest-neighbor search over dense
// embeddings using an HNSW graph.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to the query vector. Callers
	// that need predicate filtering should over-fetch and post-filter,
	// since the underlying graph has no filter pushdown.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks).
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence.
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch between the
// index and the active embedding model.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'gik reindex <branch>')", e.Expected, e.Got)
}
