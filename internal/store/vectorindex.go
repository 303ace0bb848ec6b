package store

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// Metric names the distance metric a VectorIndex was built with, mirroring
// HNSWStore's "cos"/"l2" config strings but exposed as the spec's
// Cosine/Dot/L2 vocabulary.
type Metric string

const (
	MetricCosine Metric = "Cosine"
	MetricDot    Metric = "Dot"
	MetricL2     Metric = "L2"
)

// hnswConfigMetric maps a spec Metric onto the HNSWStore config string it
// is built from. Dot is approximated by cosine on normalized vectors,
// since coder/hnsw ships cosine and L2 distance functions only; this is
// documented rather than silently substituted.
func hnswConfigMetric(m Metric) string {
	if m == MetricL2 {
		return "l2"
	}
	return "cos"
}

// Payload is the metadata attached to a vector record: everything the
// spec's filters (base, branch, source type, path prefix, tag set,
// revision id) select on.
type Payload struct {
	Base       string
	Branch     string
	SourceType string
	Path       string
	Tags       []string
	RevisionID string
}

// Filter selects a subset of vectors by payload. A zero-value field is
// "don't care"; Tags matches if the payload contains every listed tag.
type Filter struct {
	Base       string
	Branch     string
	SourceType string
	PathPrefix string
	Tags       []string
	RevisionID string
}

func (f *Filter) matches(p Payload) bool {
	if f == nil {
		return true
	}
	if f.Base != "" && f.Base != p.Base {
		return false
	}
	if f.Branch != "" && f.Branch != p.Branch {
		return false
	}
	if f.SourceType != "" && f.SourceType != p.SourceType {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(p.Path, f.PathPrefix) {
		return false
	}
	if f.RevisionID != "" && f.RevisionID != p.RevisionID {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, got := range p.Tags {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// IndexRecord is one vector plus its payload, as written by Upsert.
type IndexRecord struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// QueryHit is one result from VectorIndex.Query.
type QueryHit struct {
	ID      string
	Score   float32
	Payload Payload
}

// filterOversampleFactor is how much wider than the caller's limit we
// fetch from the underlying ANN graph before post-filtering, since
// coder/hnsw has no predicate pushdown. A filtered query may still
// under-return if fewer than limit candidates in the oversampled set
// match; callers that need exhaustive filtered recall should widen limit
// themselves.
const filterOversampleFactor = 8

// IncompatibilityKind classifies why a persisted index can't serve a
// base's current model/config.
type IncompatibilityKind string

const (
	IncompatibilityNone        IncompatibilityKind = ""
	IncompatibilityNotFound    IncompatibilityKind = "NotFound"
	IncompatibilityDimension   IncompatibilityKind = "IncompatibleDimension"
	IncompatibilityBackend     IncompatibilityKind = "IncompatibleBackend"
	IncompatibilityMetric      IncompatibilityKind = "IncompatibleMetric"
	IncompatibilityCorrupted   IncompatibilityKind = "Corrupted"
)

// VectorIndex is the spec's VectorIndex trait: a filtered ANN store over
// dense embeddings, synchronous to the caller per the concurrency model
// (async backends would wrap a private executor, but the only backend GIK
// ships, HNSWVectorIndex, is natively synchronous).
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, limit int, filter *Filter) ([]QueryHit, error)
	Upsert(ctx context.Context, records []IndexRecord) error
	Delete(ctx context.Context, ids []string) error
	Flush() error
	Len() int
	Dimension() int
	Metric() Metric
	Backend() string
}

// HNSWVectorIndex implements VectorIndex atop HNSWStore, adding the
// payload map and filter-by-oversample-and-post-filter strategy documented
// in SPEC_FULL.md §4.5. It owns exactly one base's vectors.
type HNSWVectorIndex struct {
	mu      sync.RWMutex
	inner   *HNSWStore
	payload map[string]Payload
	dim     int
	metric  Metric
}

// NewHNSWVectorIndex creates an empty index for the given dimension and
// metric.
func NewHNSWVectorIndex(dimension int, metric Metric) (*HNSWVectorIndex, error) {
	if metric == "" {
		metric = MetricCosine
	}
	cfg := DefaultVectorStoreConfig(dimension)
	cfg.Metric = hnswConfigMetric(metric)
	inner, err := NewHNSWStore(cfg)
	if err != nil {
		return nil, gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	return &HNSWVectorIndex{
		inner:   inner,
		payload: make(map[string]Payload),
		dim:     dimension,
		metric:  metric,
	}, nil
}

// Backend names the ANN backend this VectorIndex wraps.
func (v *HNSWVectorIndex) Backend() string { return "hnsw" }

// Dimension returns the configured embedding dimension.
func (v *HNSWVectorIndex) Dimension() int { return v.dim }

// Metric returns the configured distance metric.
func (v *HNSWVectorIndex) Metric() Metric { return v.metric }

// Len returns the number of live (non-deleted) vectors.
func (v *HNSWVectorIndex) Len() int { return v.inner.Count() }

// Flush is a no-op: HNSWVectorIndex mutates in memory synchronously and
// relies on an explicit Save call for persistence, matching HNSWStore's
// own contract.
func (v *HNSWVectorIndex) Flush() error { return nil }

// Upsert validates every vector's length against the configured
// dimension, deletes any existing record for the same id (making the
// call idempotent), then inserts the new vectors and records their
// payload.
func (v *HNSWVectorIndex) Upsert(ctx context.Context, records []IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != v.dim {
			return gikerrors.New(gikerrors.KindVectorIndexIncompatible,
				"vector length does not match index dimension", nil).
				WithDetail("expected", itoaDebug(v.dim)).
				WithDetail("got", itoaDebug(len(r.Vector)))
		}
		ids = append(ids, r.ID)
		vectors = append(vectors, r.Vector)
	}

	if err := v.inner.Delete(ctx, ids); err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	if err := v.inner.Add(ctx, ids, vectors); err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}

	v.mu.Lock()
	for _, r := range records {
		v.payload[r.ID] = r.Payload
	}
	v.mu.Unlock()
	return nil
}

// Delete removes vectors and their payload by id.
func (v *HNSWVectorIndex) Delete(ctx context.Context, ids []string) error {
	if err := v.inner.Delete(ctx, ids); err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	v.mu.Lock()
	for _, id := range ids {
		delete(v.payload, id)
	}
	v.mu.Unlock()
	return nil
}

// Query runs ANN search for embedding and, when filter is non-nil,
// over-fetches filterOversampleFactor*limit candidates from the graph and
// post-filters against the payload map, since coder/hnsw has no predicate
// pushdown.
//
// [DESIGN NOTE] this is an approximation, not an exhaustive filtered
// search: if fewer than limit candidates in the oversampled set match the
// filter, Query returns fewer than limit hits rather than continuing to
// widen the fetch indefinitely.
func (v *HNSWVectorIndex) Query(ctx context.Context, embedding []float32, limit int, filter *Filter) ([]QueryHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	fetch := limit
	if filter != nil {
		fetch = limit * filterOversampleFactor
	}

	results, err := v.inner.Search(ctx, embedding, fetch)
	if err != nil {
		return nil, gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	hits := make([]QueryHit, 0, limit)
	for _, r := range results {
		p := v.payload[r.ID]
		if !filter.matches(p) {
			continue
		}
		hits = append(hits, QueryHit{ID: r.ID, Score: r.Score, Payload: p})
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

// vectorIndexSidecar is the gob-encoded payload map + declared metadata
// persisted alongside the HNSWStore's own save file.
type vectorIndexSidecar struct {
	Dim     int
	Metric  Metric
	Payload map[string]Payload
}

func payloadSidecarPath(dir string) string { return filepath.Join(dir, "payload.gob") }
func hnswDataPath(dir string) string       { return filepath.Join(dir, "index.hnsw") }

// Save persists both the HNSW graph (via HNSWStore.Save) and the payload
// sidecar under dir, atomically via HNSWStore's own temp-file-then-rename
// Save plus a matching atomic write for the sidecar.
func (v *HNSWVectorIndex) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	if err := v.inner.Save(hnswDataPath(dir)); err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}

	v.mu.RLock()
	side := vectorIndexSidecar{Dim: v.dim, Metric: v.metric, Payload: v.payload}
	v.mu.RUnlock()

	tmp, err := os.CreateTemp(dir, ".payload-*.tmp")
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := gob.NewEncoder(tmp).Encode(side); err != nil {
		_ = tmp.Close()
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	if err := tmp.Close(); err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	if err := os.Rename(tmpPath, payloadSidecarPath(dir)); err != nil {
		return gikerrors.Wrap(gikerrors.KindVectorIndexIO, err)
	}
	return nil
}

// LoadHNSWVectorIndex reconstructs a previously saved index from dir, or
// reports IncompatibilityNotFound via ok=false if dir has never been
// written.
func LoadHNSWVectorIndex(dir string) (idx *HNSWVectorIndex, ok bool, err error) {
	if _, statErr := os.Stat(payloadSidecarPath(dir)); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, false, nil
		}
		return nil, false, gikerrors.Wrap(gikerrors.KindVectorIndexIO, statErr)
	}

	f, openErr := os.Open(payloadSidecarPath(dir))
	if openErr != nil {
		return nil, false, gikerrors.Wrap(gikerrors.KindVectorIndexIO, openErr)
	}
	defer func() { _ = f.Close() }()

	var side vectorIndexSidecar
	if decErr := gob.NewDecoder(f).Decode(&side); decErr != nil {
		return nil, false, gikerrors.New(gikerrors.KindVectorIndexParse, "corrupted vector index sidecar", decErr)
	}

	cfg := DefaultVectorStoreConfig(side.Dim)
	cfg.Metric = hnswConfigMetric(side.Metric)
	inner, newErr := NewHNSWStore(cfg)
	if newErr != nil {
		return nil, false, gikerrors.Wrap(gikerrors.KindVectorIndexIO, newErr)
	}
	if loadErr := inner.Load(hnswDataPath(dir)); loadErr != nil {
		return nil, false, gikerrors.New(gikerrors.KindVectorIndexParse, "corrupted HNSW graph", loadErr)
	}

	if side.Payload == nil {
		side.Payload = make(map[string]Payload)
	}
	return &HNSWVectorIndex{
		inner:   inner,
		payload: side.Payload,
		dim:     side.Dim,
		metric:  side.Metric,
	}, true, nil
}

// CheckCompatibility compares a persisted index's declared dimension and
// metric against what the active model/config require, returning the
// IncompatibilityKind (empty if compatible) per spec.md §3's "Vector index
// meta" compatibility classes.
func CheckCompatibility(found bool, idx VectorIndex, wantDim int, wantMetric Metric) IncompatibilityKind {
	if !found {
		return IncompatibilityNotFound
	}
	if idx.Dimension() != wantDim {
		return IncompatibilityDimension
	}
	if wantMetric != "" && idx.Metric() != wantMetric {
		return IncompatibilityMetric
	}
	return IncompatibilityNone
}

// sortHitsDeterministically breaks score ties by id so that repeated
// queries over an unchanged index are byte-for-byte reproducible, per the
// spec's "ask is deterministic" testable property.
func sortHitsDeterministically(hits []QueryHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func itoaDebug(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
