// Package basestore persists the per-base source list, stats, and
// model-info records under R/.guided/knowledge/<branch>/bases/<base>/.
package basestore

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// SourceEntry is one BaseSourceEntry: a chunk's provenance and extent
// within a base's source list.
type SourceEntry struct {
	ChunkID       string    `json:"chunkId"`
	SourceURI     string    `json:"sourceUri"`
	Path          string    `json:"path"`
	ByteStart     int64     `json:"byteStart"`
	ByteEnd       int64     `json:"byteEnd"`
	LineStart     int       `json:"lineStart"`
	LineEnd       int       `json:"lineEnd"`
	TextSnippet   string    `json:"textSnippet,omitempty"`
	TextPointer   string    `json:"textPointer,omitempty"`
	Fingerprint   string    `json:"fingerprint"`
	Language      string    `json:"language,omitempty"`
	IndexedAt     time.Time `json:"indexedAt"`
	RevisionID    string    `json:"revisionId"`

	// Scope and Category are only meaningful for the memory base: they
	// record a memory entry's scope (session, project) and source
	// category (decision, observation, note, summary) for filtering and
	// pruning. Every other base leaves them empty.
	Scope    string `json:"scope,omitempty"`
	Category string `json:"category,omitempty"`
}

// Stats is a base's aggregate bookkeeping record.
type Stats struct {
	DocumentCount int       `json:"documentCount"`
	VectorCount   int       `json:"vectorCount"`
	SizeBytes     int64     `json:"sizeBytes"`
	LastIndexed   time.Time `json:"lastIndexed"`
}

// ModelInfo describes the embedding model a base was indexed with.
type ModelInfo struct {
	ModelID        string    `json:"modelId"`
	Architecture   string    `json:"architecture"`
	Dimension      int       `json:"dimension"`
	MaxInputTokens int       `json:"maxInputTokens"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store manages one base's on-disk directory:
// R/.guided/knowledge/<branch>/bases/<base>/.
type Store struct {
	dir string
}

// New returns a Store for the given base directory.
func New(baseDir string) *Store {
	return &Store{dir: baseDir}
}

func (s *Store) sourcesPath() string   { return filepath.Join(s.dir, "sources.jsonl") }
func (s *Store) statsPath() string     { return filepath.Join(s.dir, "stats.json") }
func (s *Store) modelInfoPath() string { return filepath.Join(s.dir, "model-info.json") }

// LoadSources returns every BaseSourceEntry currently recorded for the base.
func (s *Store) LoadSources() ([]SourceEntry, error) {
	f, err := os.Open(s.sourcesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	defer func() { _ = f.Close() }()

	var entries []SourceEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e SourceEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, gikerrors.Wrap(gikerrors.KindBaseStoreParse, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	return entries, nil
}

// AppendSources appends new BaseSourceEntry records to sources.jsonl.
func (s *Store) AppendSources(entries []SourceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}

	f, err := os.OpenFile(s.sourcesPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		line, marshalErr := json.Marshal(e)
		if marshalErr != nil {
			return gikerrors.Wrap(gikerrors.KindBaseStoreParse, marshalErr)
		}
		if _, writeErr := w.Write(append(line, '\n')); writeErr != nil {
			return gikerrors.Wrap(gikerrors.KindBaseStoreIO, writeErr)
		}
	}
	if err := w.Flush(); err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	return f.Sync()
}

// RewriteSources replaces sources.jsonl wholesale (used by reindex, which
// rebuilds a base's index and source list from scratch).
func (s *Store) RewriteSources(entries []SourceEntry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	return atomicWriteJSONLines(s.sourcesPath(), entries)
}

// LoadStats returns the base's stats record, or a zero-value Stats if none
// has been saved yet.
func (s *Store) LoadStats() (Stats, error) {
	var stats Stats
	data, err := os.ReadFile(s.statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, gikerrors.Wrap(gikerrors.KindStatsIOError, err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, gikerrors.Wrap(gikerrors.KindBaseStoreParse, err)
	}
	return stats, nil
}

// SaveStats persists the base's stats record atomically.
func (s *Store) SaveStats(stats Stats) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindStatsIOError, err)
	}
	return atomicWriteJSON(s.statsPath(), stats)
}

// RecomputeAndSaveStats derives stats from the current in-memory source
// list and vector count and persists them in one operation, per the spec's
// requirement that stats stay consistent with the source list.
func (s *Store) RecomputeAndSaveStats(entries []SourceEntry, vectorCount int) (Stats, error) {
	var size int64
	var latest time.Time
	for _, e := range entries {
		size += e.ByteEnd - e.ByteStart
		if e.IndexedAt.After(latest) {
			latest = e.IndexedAt
		}
	}

	stats := Stats{
		DocumentCount: len(entries),
		VectorCount:   vectorCount,
		SizeBytes:     size,
		LastIndexed:   latest,
	}
	if err := s.SaveStats(stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// LoadModelInfo returns the base's model-info record, and ok=false if
// none has been written yet (the base has never been committed to).
func (s *Store) LoadModelInfo() (ModelInfo, bool, error) {
	var info ModelInfo
	data, err := os.ReadFile(s.modelInfoPath())
	if err != nil {
		if os.IsNotExist(err) {
			return info, false, nil
		}
		return info, false, gikerrors.Wrap(gikerrors.KindEmbeddingModelInfoIO, err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, false, gikerrors.Wrap(gikerrors.KindEmbeddingModelInfoParse, err)
	}
	return info, true, nil
}

// SaveModelInfo persists the base's model-info record atomically.
func (s *Store) SaveModelInfo(info ModelInfo) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindEmbeddingModelInfoIO, err)
	}
	return atomicWriteJSON(s.modelInfoPath(), info)
}

func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreParse, err)
	}
	return atomicWrite(path, data)
}

func atomicWriteJSONLines(path string, entries []SourceEntry) error {
	var buf strings.Builder
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return gikerrors.Wrap(gikerrors.KindBaseStoreParse, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return atomicWrite(path, []byte(buf.String()))
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".basestore-*.tmp")
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	return os.Rename(tmpPath, path)
}
