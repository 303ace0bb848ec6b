// Package commit implements the staging -> commit pipeline: it reads and
// validates every pending source, embeds and upserts the survivors into
// each target base's vector and BM25 indices, appends their provenance to
// the base's source list, rebuilds the branch's knowledge graph, and
// seals the result as a new timeline revision. Order matters: per-base
// artifacts are written before that base's stats, stats before the
// timeline entry, the timeline entry before HEAD, HEAD before staging
// is cleared.
package commit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guided-indexing/gik/internal/basestore"
	"github.com/guided-indexing/gik/internal/branchlock"
	"github.com/guided-indexing/gik/internal/config"
	"github.com/guided-indexing/gik/internal/embedding"
	gikerrors "github.com/guided-indexing/gik/internal/errors"
	"github.com/guided-indexing/gik/internal/extract"
	"github.com/guided-indexing/gik/internal/ignore"
	"github.com/guided-indexing/gik/internal/kg"
	"github.com/guided-indexing/gik/internal/kgstore"
	"github.com/guided-indexing/gik/internal/staging"
	"github.com/guided-indexing/gik/internal/store"
	"github.com/guided-indexing/gik/internal/timeline"
	"github.com/guided-indexing/gik/internal/workspace"
)

// URLFetcher resolves a staged URL to its text content. The fetcher
// implementation itself (HTTP client, readability extraction, etc.) is an
// external collaborator; a nil Fetcher on Pipeline marks URL sources
// Failed (reason "no url fetcher configured") instead of silently
// skipping them.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Options configures one Commit call.
type Options struct {
	Message      string
	AllowEmpty   bool
	BatchSize    int // 0 uses Config.Embeddings.BatchSize
	MaxFileSize  int64
	MaxFileLines int
}

// BaseDelta summarizes one base's change from a single commit.
type BaseDelta struct {
	Name       string `json:"name"`
	NewChunks  int    `json:"newChunks"`
	NewVectors int    `json:"newVectors"`
}

// FailedSource records one pending source that could not be committed.
type FailedSource struct {
	URI    string `json:"uri"`
	Reason string `json:"reason"`
}

// Payload is the Commit revision's operation-specific payload.
type Payload struct {
	Bases   []BaseDelta    `json:"bases"`
	Failed  []FailedSource `json:"failed,omitempty"`
	Message string         `json:"message,omitempty"`
	KGNodes int            `json:"kgNodes,omitempty"`
	KGEdges int            `json:"kgEdges,omitempty"`
}

// Result is the outcome of a successful (possibly partial) Commit.
type Result struct {
	RevisionID string
	Bases      []BaseDelta
	Failed     []FailedSource
	Partial    bool
}

// Pipeline wires together the collaborators a commit needs: the
// workspace, configuration, embedding backend, and an optional URL
// fetcher. One Pipeline is reused across commits to the same or
// different branches.
type Pipeline struct {
	WS       *workspace.Workspace
	Config   *config.Config
	Embedder embedding.Embedder
	Fetcher  URLFetcher
	Logger   *slog.Logger
}

// New returns a Pipeline. logger may be nil, in which case slog.Default()
// is used.
func New(ws *workspace.Workspace, cfg *config.Config, embedder embedding.Embedder, fetcher URLFetcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{WS: ws, Config: cfg, Embedder: embedder, Fetcher: fetcher, Logger: logger}
}

// candidateSource is one pending source after it has been read and
// validated, ready for embedding.
type candidateSource struct {
	pendingID   string
	base        string
	path        string // normalized, POSIX
	sourceURI   string
	sourceType  string
	text        string
	fingerprint string
	language    string
	tags        []string
}

// Commit runs the full pipeline for branch under the branch's advisory
// lock. It is the single entry point callers should use.
func (p *Pipeline) Commit(ctx context.Context, branch string, opts Options) (Result, error) {
	branchRoot, err := p.WS.BranchRoot(branch)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(branchRoot, 0o755); err != nil {
		return Result{}, gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}

	var result Result
	lockErr := branchlock.WithLock(branchRoot, func() error {
		r, commitErr := p.commitLocked(ctx, branch, branchRoot, opts)
		result = r
		return commitErr
	})
	if lockErr != nil {
		return Result{}, lockErr
	}
	return result, nil
}

func (p *Pipeline) commitLocked(ctx context.Context, branch, branchRoot string, opts Options) (Result, error) {
	stagingStore := staging.New(filepath.Join(branchRoot, "staging"))
	pending, err := stagingStore.List()
	if err != nil {
		return Result{}, err
	}

	var eligible []staging.PendingSource
	for _, ps := range pending {
		if ps.Status == staging.StatusPending && ps.Base != "" {
			eligible = append(eligible, ps)
		}
	}
	if len(eligible) == 0 && !opts.AllowEmpty {
		return Result{}, gikerrors.NothingToCommit(branch)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = int64(p.Config.Chunk.MaxFileBytes)
	}
	maxLines := opts.MaxFileLines
	if maxLines <= 0 {
		maxLines = p.Config.Chunk.MaxFileLines
	}

	matcher, matchErr := ignore.LoadWorkspaceMatcher(p.WS.Root())
	if matchErr != nil {
		matcher = ignore.New()
	}

	candidates, failed := p.readAndValidate(ctx, eligible, maxSize, maxLines, matcher)
	for _, f := range failed {
		_ = stagingStore.UpdateStatus(f.id, staging.StatusFailed, f.reason)
	}

	if len(candidates) == 0 {
		if opts.AllowEmpty {
			return Result{Failed: toFailedSources(failed)}, nil
		}
		return Result{}, gikerrors.NothingToCommit(branch)
	}

	if p.Config.Embeddings.WarmupEnabled && p.Embedder != nil {
		if _, warmErr := p.Embedder.Embed(ctx, "warmup probe"); warmErr != nil {
			p.Logger.Warn("embedding warmup failed, continuing", "error", warmErr)
		}
	}

	byBase := make(map[string][]candidateSource)
	for _, c := range candidates {
		byBase[c.base] = append(byBase[c.base], c)
	}

	revID := timeline.NewRevisionID()

	var deltas []BaseDelta
	var indexedPendingIDs []string

	baseNames := make([]string, 0, len(byBase))
	for name := range byBase {
		baseNames = append(baseNames, name)
	}

	for _, baseName := range baseNames {
		srcs := byBase[baseName]
		delta, ids, commitErr := p.commitBase(ctx, branch, branchRoot, baseName, srcs, opts, revID)
		if commitErr != nil {
			p.Logger.Error("commit aborted for base", "base", baseName, "error", commitErr)
			for _, c := range srcs {
				failed = append(failed, failedPending{id: c.pendingID, reason: commitErr.Error()})
				_ = stagingStore.UpdateStatus(c.pendingID, staging.StatusFailed, commitErr.Error())
			}
			continue
		}
		deltas = append(deltas, delta)
		indexedPendingIDs = append(indexedPendingIDs, ids...)
	}

	if len(deltas) == 0 {
		return Result{Failed: toFailedSources(failed)}, gikerrors.New(gikerrors.KindCommitIngestionError,
			"every base failed to commit", nil)
	}

	kgNodes, kgEdges, kgErr := p.syncKG(branch, branchRoot)
	partial := false
	if kgErr != nil {
		p.Logger.Error("kg sync failed after commit, base artifacts retained", "error", kgErr)
		partial = true
	}

	payload := Payload{Bases: deltas, Failed: toFailedSources(failed), Message: opts.Message, KGNodes: kgNodes, KGEdges: kgEdges}
	tl := timeline.New(branchRoot)
	_, revErr := tl.AppendRevisionWithID(revID, branch, timeline.OperationCommit, payload)
	if revErr != nil {
		return Result{}, gikerrors.New(gikerrors.KindPartialCommit,
			"base artifacts were written but the commit revision could not be recorded", revErr)
	}

	for _, id := range indexedPendingIDs {
		_ = stagingStore.UpdateStatus(id, staging.StatusIndexed, "")
	}
	_ = stagingStore.ClearIndexed()

	if partial {
		return Result{RevisionID: revID, Bases: deltas, Failed: toFailedSources(failed), Partial: true},
			gikerrors.New(gikerrors.KindPartialCommit, "kg sync failed; base artifacts were committed and will re-enter the kg on the next successful commit", kgErr)
	}

	return Result{RevisionID: revID, Bases: deltas, Failed: toFailedSources(failed)}, nil
}

type failedPending struct {
	id     string
	reason string
}

func toFailedSources(fs []failedPending) []FailedSource {
	out := make([]FailedSource, 0, len(fs))
	for _, f := range fs {
		out = append(out, FailedSource{URI: f.id, Reason: f.reason})
	}
	return out
}

// readAndValidate reads every eligible pending source in parallel,
// bounded by a worker limit, applying size/line caps, the
// binary-extension filter, and .gikignore rules.
func (p *Pipeline) readAndValidate(ctx context.Context, eligible []staging.PendingSource, maxSize int64, maxLines int, matcher *ignore.Matcher) ([]candidateSource, []failedPending) {
	results := make([]*candidateSource, len(eligible))
	failures := make([]*failedPending, len(eligible))

	workers := p.Config.Performance.IndexWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if !p.Config.Performance.ParallelFileReading {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ps := range eligible {
		i, ps := i, ps
		g.Go(func() error {
			c, failReason := p.readOne(gctx, ps, maxSize, maxLines, matcher)
			if failReason != "" {
				failures[i] = &failedPending{id: ps.ID, reason: failReason}
				return nil
			}
			results[i] = c
			return nil
		})
	}
	_ = g.Wait()

	var candidates []candidateSource
	var failed []failedPending
	for i := range eligible {
		if results[i] != nil {
			candidates = append(candidates, *results[i])
		}
		if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}
	return candidates, failed
}

func (p *Pipeline) readOne(ctx context.Context, ps staging.PendingSource, maxSize int64, maxLines int, matcher *ignore.Matcher) (*candidateSource, string) {
	if matcher != nil && matcher.Match(ps.URI, false) {
		return nil, "excluded by .gikignore"
	}
	return p.readOneImpl(ctx, ps, maxSize, maxLines)
}

func (p *Pipeline) readOneImpl(ctx context.Context, ps staging.PendingSource, maxSize int64, maxLines int) (*candidateSource, string) {
	if text, ok := ps.Metadata["text"]; ok && ps.Kind != staging.KindURL {
		return p.buildCandidate(ps, ps.URI, text, "inline")
	}

	switch ps.Kind {
	case staging.KindFile:
		if ignore.IsBinaryExtension(ps.URI) {
			return nil, "binary extension excluded"
		}
		abs := ps.URI
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(p.WS.Root(), filepath.FromSlash(ps.URI))
		}
		info, statErr := os.Stat(abs)
		if statErr != nil {
			return nil, fmt.Sprintf("stat failed: %v", statErr)
		}
		if info.Size() > maxSize {
			return nil, fmt.Sprintf("file exceeds max size (%d > %d bytes)", info.Size(), maxSize)
		}
		data, readErr := os.ReadFile(abs)
		if readErr != nil {
			return nil, fmt.Sprintf("read failed: %v", readErr)
		}
		lines := countLines(string(data))
		if maxLines > 0 && lines > maxLines {
			return nil, fmt.Sprintf("file exceeds max lines (%d > %d)", lines, maxLines)
		}
		return p.buildCandidate(ps, ps.URI, string(data), "file")

	case staging.KindURL:
		if p.Fetcher == nil {
			return nil, "no url fetcher configured"
		}
		text, fetchErr := p.Fetcher.Fetch(ctx, ps.URI)
		if fetchErr != nil {
			return nil, fmt.Sprintf("fetch failed: %v", fetchErr)
		}
		return p.buildCandidate(ps, ps.URI, text, "url")

	case staging.KindDirectory, staging.KindArchive:
		return nil, fmt.Sprintf("%s sources must be expanded to files before staging", ps.Kind)

	default:
		return nil, fmt.Sprintf("unsupported source kind %q", ps.Kind)
	}
}

func (p *Pipeline) buildCandidate(ps staging.PendingSource, normalizedPath, text, sourceType string) (*candidateSource, string) {
	if strings.TrimSpace(text) == "" {
		return nil, "empty content"
	}
	fp := ContentFingerprint(text)
	var tags []string
	if raw, ok := ps.Metadata["tags"]; ok && raw != "" {
		tags = strings.Split(raw, ",")
	}
	return &candidateSource{
		pendingID:   ps.ID,
		base:        ps.Base,
		path:        filepath.ToSlash(normalizedPath),
		sourceURI:   ps.URI,
		sourceType:  sourceType,
		text:        text,
		fingerprint: fp,
		language:    string(extract.LanguageForPath(normalizedPath)),
		tags:        tags,
	}, ""
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// commitBase handles the per-base portion of a commit: model-info and
// vector-index compatibility checks, embedding, vector upsert, BM25
// rebuild, source-list append, and stats recompute. A failure here aborts
// only this base's commit, leaving its prior artifacts untouched.
func (p *Pipeline) commitBase(ctx context.Context, branch, branchRoot, baseName string, srcs []candidateSource, opts Options, revID string) (BaseDelta, []string, error) {
	baseDir := filepath.Join(branchRoot, "bases", baseName)
	bs := basestore.New(baseDir)

	modelInfo, hadModel, err := bs.LoadModelInfo()
	if err != nil {
		return BaseDelta{}, nil, err
	}

	dim := p.Embedder.Dimensions()
	modelID := p.Embedder.ModelName()
	if !hadModel {
		modelInfo = basestore.ModelInfo{
			ModelID:      modelID,
			Architecture: "bi-encoder",
			Dimension:    dim,
			CreatedAt:    time.Now().UTC(),
		}
		if err := bs.SaveModelInfo(modelInfo); err != nil {
			return BaseDelta{}, nil, err
		}
	} else if modelInfo.ModelID != modelID || modelInfo.Dimension != dim {
		return BaseDelta{}, nil, gikerrors.EmbeddingModelMismatch(baseName, modelInfo.ModelID, modelID)
	}

	vecDir := filepath.Join(baseDir, "vector")
	vecIndex, found, loadErr := store.LoadHNSWVectorIndex(vecDir)
	if loadErr != nil {
		return BaseDelta{}, nil, gikerrors.New(gikerrors.KindVectorIndexIncompatible, "vector index corrupted; run reindex for this base", loadErr).
			WithHint(fmt.Sprintf("run 'gik reindex --base %s'", baseName))
	}
	if found {
		if kind := store.CheckCompatibility(found, vecIndex, dim, store.MetricCosine); kind != store.IncompatibilityNone {
			return BaseDelta{}, nil, gikerrors.New(gikerrors.KindVectorIndexIncompatible,
				fmt.Sprintf("vector index incompatible (%s)", kind), nil).
				WithHint(fmt.Sprintf("run 'gik reindex --base %s'", baseName))
		}
	} else {
		vecIndex, err = store.NewHNSWVectorIndex(dim, store.MetricCosine)
		if err != nil {
			return BaseDelta{}, nil, err
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = p.Config.Embeddings.BatchSize
	}
	if batchSize <= 0 {
		batchSize = embedding.DefaultBatchSize
	}

	texts := make([]string, len(srcs))
	for i, s := range srcs {
		texts[i] = s.text
	}
	vectors, embErr := embedBatched(ctx, p.Embedder, texts, batchSize)
	if embErr != nil {
		return BaseDelta{}, nil, gikerrors.New(gikerrors.KindCommitEmbeddingIncompat, "embedding failed", embErr)
	}

	now := time.Now().UTC()
	records := make([]store.IndexRecord, len(srcs))
	entries := make([]basestore.SourceEntry, len(srcs))
	ids := make([]string, len(srcs))

	for i, s := range srcs {
		chunkID := ChunkID(baseName, s.path, s.fingerprint)
		records[i] = store.IndexRecord{
			ID:     chunkID,
			Vector: vectors[i],
			Payload: store.Payload{
				Base: baseName, Branch: branch, SourceType: s.sourceType,
				Path: s.path, Tags: s.tags, RevisionID: revID,
			},
		}
		entries[i] = basestore.SourceEntry{
			ChunkID:     chunkID,
			SourceURI:   s.sourceURI,
			Path:        s.path,
			ByteStart:   0,
			ByteEnd:     int64(len(s.text)),
			LineStart:   1,
			LineEnd:     countLines(s.text),
			TextSnippet: Snippet(s.text, 500),
			TextPointer: s.path,
			Fingerprint: s.fingerprint,
			Language:    s.language,
			IndexedAt:   now,
			RevisionID:  revID,
		}
		ids[i] = s.pendingID
	}

	if err := vecIndex.Upsert(ctx, records); err != nil {
		return BaseDelta{}, nil, err
	}
	if err := vecIndex.Save(vecDir); err != nil {
		return BaseDelta{}, nil, err
	}

	existing, err := bs.LoadSources()
	if err != nil {
		return BaseDelta{}, nil, err
	}

	freshTexts := make(map[string]string, len(srcs))
	for i, s := range srcs {
		freshTexts[entries[i].ChunkID] = s.text
	}
	if err := rebuildBM25(ctx, p.Config, baseDir, existing, entries, freshTexts); err != nil {
		return BaseDelta{}, nil, err
	}

	if err := bs.AppendSources(entries); err != nil {
		return BaseDelta{}, nil, err
	}

	allSources := append(existing, entries...)
	if _, err := bs.RecomputeAndSaveStats(allSources, vecIndex.Len()); err != nil {
		return BaseDelta{}, nil, err
	}

	return BaseDelta{Name: baseName, NewChunks: len(entries), NewVectors: len(records)}, ids, nil
}

// embedBatched embeds texts in fixed-size batches.
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

// rebuildBM25 rebuilds a base's BM25 index from the union of its prior
// sources plus the new ones; simpler than incremental updates and
// acceptable at the sizes a local workspace index deals with. Prior
// sources' text is
// re-read from disk via their TextPointer; sources whose text can no
// longer be read are skipped from the BM25 rebuild but remain in
// sources.jsonl (their vector entry is unaffected).
func rebuildBM25(ctx context.Context, cfg *config.Config, baseDir string, existing, fresh []basestore.SourceEntry, freshTexts map[string]string) error {
	bm25Dir := filepath.Join(baseDir, "bm25")
	idx := store.NewScorerIndex(store.BM25Config{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B, MinTokenLength: 2})

	var docs []*store.Document
	for _, e := range existing {
		text, err := rereadSourceText(baseDir, e)
		if err != nil {
			continue
		}
		docs = append(docs, &store.Document{ID: e.ChunkID, Content: text})
	}
	for _, e := range fresh {
		docs = append(docs, &store.Document{ID: e.ChunkID, Content: freshTexts[e.ChunkID]})
	}

	if err := idx.Index(ctx, docs); err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	if err := os.MkdirAll(bm25Dir, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	return idx.Save(filepath.Join(bm25Dir, "index.bin"))
}

// rereadSourceText recovers a source's full text by re-reading its
// TextPointer (a normalized path) from disk, used when rebuilding BM25
// over previously-indexed sources whose content is not fully retained in
// sources.jsonl.
func rereadSourceText(baseDir string, e basestore.SourceEntry) (string, error) {
	root := workspaceRootFromBaseDir(baseDir)
	abs := filepath.Join(root, filepath.FromSlash(e.TextPointer))
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// workspaceRootFromBaseDir walks up from
// R/.guided/knowledge/<branch>/bases/<base> to R.
func workspaceRootFromBaseDir(baseDir string) string {
	dir := baseDir
	for {
		parent := filepath.Dir(dir)
		if filepath.Base(dir) == "knowledge" && filepath.Base(parent) == ".guided" {
			return filepath.Dir(parent)
		}
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// syncKG runs a full KG rebuild for the branch over every source in its
// KG-eligible bases (code, docs), re-reading text from disk. commitLocked
// calls it only after at least one base has committed in this call; the
// rebuild itself is branch-scoped and covers every KG-eligible source,
// not just this call's deltas.
func (p *Pipeline) syncKG(branch, branchRoot string) (nodeCount, edgeCount int, err error) {
	kgStore := kgstore.New(branchRoot)
	registry := extract.NewRegistry()
	root := p.WS.Root()

	var sources []kg.Source
	for _, baseName := range kg.KGEligibleBases {
		baseDir := filepath.Join(branchRoot, "bases", baseName)
		bs := basestore.New(baseDir)
		entries, loadErr := bs.LoadSources()
		if loadErr != nil {
			continue
		}
		for _, e := range entries {
			abs := filepath.Join(root, filepath.FromSlash(e.TextPointer))
			data, readErr := os.ReadFile(abs)
			text := ""
			if readErr == nil {
				text = string(data)
			}
			sources = append(sources, kg.Source{Base: baseName, Path: e.Path, Text: text})
		}
	}

	result, syncErr := kg.SyncBranch(kgStore, registry, sources)
	if syncErr != nil {
		return 0, 0, syncErr
	}
	for _, w := range result.Warnings {
		p.Logger.Debug("kg sync warning", "path", w.Path, "message", w.Message)
	}
	return result.NodeCount, result.EdgeCount, nil
}

// ContentFingerprint computes a stable content fingerprint, used as both
// the BaseSourceEntry.Fingerprint and an input to ChunkID.
func ContentFingerprint(text string) string {
	return fnvHex([]byte(text))
}

// ChunkID computes a chunk's stable identifier: a 64-bit hash of
// (base, normalized-path, content-fingerprint).
func ChunkID(base, normalizedPath, fingerprint string) string {
	return fnvHex([]byte(base + "\x00" + normalizedPath + "\x00" + fingerprint))
}

// Snippet truncates text to at most n bytes, used for BaseSourceEntry's
// TextSnippet field (full text is recovered on demand via TextPointer).
func Snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}

func fnvHex(data []byte) string {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	hash := uint64(offset64)
	for _, b := range data {
		hash ^= uint64(b)
		hash *= prime64
	}
	return fmt.Sprintf("%016x", hash)
}
