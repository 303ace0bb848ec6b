// Package reindex rebuilds a branch's bases wholesale against the
// currently active embedding model. It exists for the case commit
// cannot handle incrementally: an embedding model change invalidates
// every vector already stored, so every source's text has to be
// re-read, re-embedded, and the vector and BM25 indices rebuilt from
// scratch.
package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/guided-indexing/gik/internal/basestore"
	"github.com/guided-indexing/gik/internal/branchlock"
	"github.com/guided-indexing/gik/internal/config"
	"github.com/guided-indexing/gik/internal/embedding"
	gikerrors "github.com/guided-indexing/gik/internal/errors"
	"github.com/guided-indexing/gik/internal/store"
	"github.com/guided-indexing/gik/internal/timeline"
	"github.com/guided-indexing/gik/internal/workspace"
)

// Options configures one Reindex call.
type Options struct {
	// Bases restricts the reindex to these base names. Empty means every
	// base that currently has a sources.jsonl.
	Bases []string
	// DryRun reports what would change without writing any index or
	// appending a timeline revision.
	DryRun bool
	// BatchSize overrides Config.Embeddings.BatchSize.
	BatchSize int
}

// BaseOutcome is the per-base result of a reindex.
type BaseOutcome struct {
	Name          string `json:"name"`
	SourceCount   int    `json:"sourceCount"`
	ReEmbedded    int    `json:"reEmbedded"`
	Unreadable    int    `json:"unreadable"`
	PreviousModel string `json:"previousModel,omitempty"`
	NewModel      string `json:"newModel"`
}

// Payload is the Reindex revision's operation-specific payload.
type Payload struct {
	Bases  []BaseOutcome `json:"bases"`
	DryRun bool          `json:"dryRun"`
}

// Result is the outcome of a Reindex call.
type Result struct {
	RevisionID string
	Bases      []BaseOutcome
}

// Pipeline wires together the collaborators a reindex needs.
type Pipeline struct {
	WS       *workspace.Workspace
	Config   *config.Config
	Embedder embedding.Embedder
	Logger   *slog.Logger
}

// New returns a Pipeline. logger may be nil, in which case slog.Default()
// is used.
func New(ws *workspace.Workspace, cfg *config.Config, embedder embedding.Embedder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{WS: ws, Config: cfg, Embedder: embedder, Logger: logger}
}

// Reindex runs the full pipeline for branch under the branch's advisory
// lock.
func (p *Pipeline) Reindex(ctx context.Context, branch string, opts Options) (Result, error) {
	branchRoot, err := p.WS.BranchRoot(branch)
	if err != nil {
		return Result{}, err
	}

	var result Result
	lockErr := branchlock.WithLock(branchRoot, func() error {
		r, reErr := p.reindexLocked(ctx, branch, branchRoot, opts)
		result = r
		return reErr
	})
	if lockErr != nil {
		return Result{}, lockErr
	}
	return result, nil
}

func (p *Pipeline) reindexLocked(ctx context.Context, branch, branchRoot string, opts Options) (Result, error) {
	baseNames, err := p.resolveBases(branchRoot, opts.Bases)
	if err != nil {
		return Result{}, err
	}
	if len(baseNames) == 0 {
		return Result{}, gikerrors.New(gikerrors.KindReindexNoSources, "no indexed bases to reindex", nil)
	}

	var outcomes []BaseOutcome
	for _, baseName := range baseNames {
		outcome, reErr := p.reindexBase(ctx, branch, branchRoot, baseName, opts)
		if reErr != nil {
			return Result{}, gikerrors.New(gikerrors.KindReindexIndexError,
				fmt.Sprintf("reindex failed for base %q", baseName), reErr)
		}
		outcomes = append(outcomes, outcome)
	}

	if opts.DryRun {
		return Result{Bases: outcomes}, nil
	}

	tl := timeline.New(branchRoot)
	revID, revErr := tl.AppendRevision(branch, timeline.OperationReindex, Payload{Bases: outcomes, DryRun: false})
	if revErr != nil {
		return Result{}, revErr
	}

	return Result{RevisionID: revID, Bases: outcomes}, nil
}

// resolveBases returns the bases to reindex: the requested subset, or
// (if empty) every base directory under bases/ that has a sources.jsonl.
func (p *Pipeline) resolveBases(branchRoot string, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	basesDir := filepath.Join(branchRoot, "bases")
	entries, err := os.ReadDir(basesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, statErr := os.Stat(filepath.Join(basesDir, e.Name(), "sources.jsonl")); statErr == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// reindexBase re-embeds every source currently recorded for baseName and
// rebuilds its vector and BM25 indices wholesale. Sources whose text can
// no longer be read (deleted file, moved path) are dropped from the
// rebuilt indices and from sources.jsonl -- reindex is the one operation
// where disappeared sources are pruned, since commit never removes
// entries on its own.
func (p *Pipeline) reindexBase(ctx context.Context, branch, branchRoot, baseName string, opts Options) (BaseOutcome, error) {
	baseDir := filepath.Join(branchRoot, "bases", baseName)
	bs := basestore.New(baseDir)

	entries, err := bs.LoadSources()
	if err != nil {
		return BaseOutcome{}, err
	}

	prevModel, hadModel, err := bs.LoadModelInfo()
	if err != nil {
		return BaseOutcome{}, err
	}
	previousModelID := ""
	if hadModel {
		previousModelID = prevModel.ModelID
	}

	root := p.WS.Root()
	type readResult struct {
		entry basestore.SourceEntry
		text  string
	}
	var readable []readResult
	unreadable := 0
	for _, e := range entries {
		abs := filepath.Join(root, filepath.FromSlash(e.TextPointer))
		data, readErr := os.ReadFile(abs)
		if readErr != nil {
			unreadable++
			continue
		}
		readable = append(readable, readResult{entry: e, text: string(data)})
	}

	dim := p.Embedder.Dimensions()
	modelID := p.Embedder.ModelName()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = p.Config.Embeddings.BatchSize
	}
	if batchSize <= 0 {
		batchSize = embedding.DefaultBatchSize
	}

	texts := make([]string, len(readable))
	for i, r := range readable {
		texts[i] = r.text
	}

	outcome := BaseOutcome{
		Name:          baseName,
		SourceCount:   len(entries),
		Unreadable:    unreadable,
		PreviousModel: previousModelID,
		NewModel:      modelID,
	}

	if opts.DryRun {
		outcome.ReEmbedded = len(readable)
		return outcome, nil
	}

	vectors, embErr := embedBatched(ctx, p.Embedder, texts, batchSize)
	if embErr != nil {
		return BaseOutcome{}, gikerrors.New(gikerrors.KindReindexEmbeddingError, "re-embedding failed", embErr)
	}

	vecIndex, vecErr := store.NewHNSWVectorIndex(dim, store.MetricCosine)
	if vecErr != nil {
		return BaseOutcome{}, vecErr
	}

	now := time.Now().UTC()
	records := make([]store.IndexRecord, len(readable))
	newEntries := make([]basestore.SourceEntry, len(readable))
	docs := make([]*store.Document, len(readable))

	for i, r := range readable {
		e := r.entry
		e.IndexedAt = now
		newEntries[i] = e
		records[i] = store.IndexRecord{
			ID:     e.ChunkID,
			Vector: vectors[i],
			Payload: store.Payload{
				Base: baseName, Branch: branch, SourceType: "file",
				Path: e.Path, RevisionID: e.RevisionID,
			},
		}
		docs[i] = &store.Document{ID: e.ChunkID, Content: r.text}
	}

	if err := vecIndex.Upsert(ctx, records); err != nil {
		return BaseOutcome{}, err
	}
	vecDir := filepath.Join(baseDir, "vector")
	if err := vecIndex.Save(vecDir); err != nil {
		return BaseOutcome{}, err
	}

	bm25Dir := filepath.Join(baseDir, "bm25")
	idx := store.NewScorerIndex(store.BM25Config{K1: p.Config.Search.BM25K1, B: p.Config.Search.BM25B, MinTokenLength: 2})
	if err := idx.Index(ctx, docs); err != nil {
		return BaseOutcome{}, gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	if err := os.MkdirAll(bm25Dir, 0o755); err != nil {
		return BaseOutcome{}, gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	if err := idx.Save(filepath.Join(bm25Dir, "index.bin")); err != nil {
		return BaseOutcome{}, err
	}

	if err := bs.RewriteSources(newEntries); err != nil {
		return BaseOutcome{}, err
	}

	newModelInfo := basestore.ModelInfo{
		ModelID:      modelID,
		Architecture: "bi-encoder",
		Dimension:    dim,
		CreatedAt:    now,
	}
	if err := bs.SaveModelInfo(newModelInfo); err != nil {
		return BaseOutcome{}, err
	}

	if _, err := bs.RecomputeAndSaveStats(newEntries, vecIndex.Len()); err != nil {
		return BaseOutcome{}, err
	}

	outcome.ReEmbedded = len(readable)
	return outcome, nil
}

func embedBatched(ctx context.Context, embedder embedding.Embedder, texts []string, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
