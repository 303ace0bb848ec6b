// Package ask implements the hybrid retrieval pipeline: it expands the
// query, embeds every variant, retrieves dense and sparse candidates per
// base in parallel, fuses them with Reciprocal Rank Fusion, optionally
// reranks, hydrates the winning chunks, and attaches a bounded knowledge-
// graph neighborhood around them.
package ask

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/guided-indexing/gik/internal/basestore"
	"github.com/guided-indexing/gik/internal/config"
	"github.com/guided-indexing/gik/internal/embedding"
	gikerrors "github.com/guided-indexing/gik/internal/errors"
	"github.com/guided-indexing/gik/internal/fusion"
	"github.com/guided-indexing/gik/internal/kg"
	"github.com/guided-indexing/gik/internal/kgstore"
	"github.com/guided-indexing/gik/internal/queryexpand"
	"github.com/guided-indexing/gik/internal/rerank"
	"github.com/guided-indexing/gik/internal/store"
	"github.com/guided-indexing/gik/internal/timeline"
	"github.com/guided-indexing/gik/internal/workspace"
)

// DefaultBasePoolSize is how many candidates are pulled from each of a
// base's dense and sparse indices before fusion.
const DefaultBasePoolSize = 40

// Options configures one Ask call.
type Options struct {
	// Bases restricts the question to these base names. Empty means every
	// base the branch has indexed.
	Bases []string
	// TopK bounds the number of ragChunks returned. 0 uses Config.Search.MaxResults.
	TopK int
	// Stack, if set, feeds query expansion's framework-aware variants and
	// is echoed back on the result.
	Stack queryexpand.StackSummary
	// Debug includes per-stage counts in the result.
	Debug bool
}

// RagChunk is one hydrated, ranked retrieval hit.
type RagChunk struct {
	Base     string  `json:"base"`
	Path     string  `json:"path"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
	SourceID string  `json:"sourceId"`
}

// KGResult is the bounded knowledge-graph neighborhood attached to an
// answer.
type KGResult struct {
	Nodes []kgstore.Node `json:"nodes"`
	Edges []kgstore.Edge `json:"edges"`
}

// Debug carries optional per-stage diagnostics.
type Debug struct {
	QueryVariants     []string       `json:"queryVariants,omitempty"`
	ExhaustiveIntent  bool           `json:"exhaustiveIntent"`
	CandidatesPerBase map[string]int `json:"candidatesPerBase,omitempty"`
	RerankerUsed      bool           `json:"rerankerUsed"`
}

// Bundle is the wire-form result of an Ask call.
type Bundle struct {
	RevisionID   string                    `json:"revisionId"`
	Question     string                    `json:"question"`
	Bases        []string                  `json:"bases"`
	RagChunks    []RagChunk                `json:"ragChunks"`
	KGResults    KGResult                  `json:"kgResults"`
	StackSummary *queryexpand.StackSummary `json:"stackSummary,omitempty"`
	Debug        *Debug                    `json:"debug,omitempty"`
}

// Pipeline wires together the collaborators Ask needs.
type Pipeline struct {
	WS       *workspace.Workspace
	Config   *config.Config
	Embedder embedding.Embedder
	Reranker rerank.Reranker
	Logger   *slog.Logger
}

// New returns a Pipeline. reranker may be nil, in which case rerank.NoOp
// is used. logger may be nil, in which case slog.Default() is used.
func New(ws *workspace.Workspace, cfg *config.Config, embedder embedding.Embedder, reranker rerank.Reranker, logger *slog.Logger) *Pipeline {
	if reranker == nil {
		reranker = rerank.NoOp{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{WS: ws, Config: cfg, Embedder: embedder, Reranker: reranker, Logger: logger}
}

// baseResult is one base's fused candidate list plus the source entries
// needed to hydrate whichever of them survive to the final answer.
type baseResult struct {
	name      string
	fused     []*fusion.Result
	entries   map[string]basestore.SourceEntry
	poolCount int
}

// Ask answers question against branch's current HEAD revision. Ask takes
// no branch lock: it only reads committed artifacts, so it is safe to run
// concurrently with other Ask calls and does not block a concurrent
// commit/reindex (which may race an in-flight Ask against the artifacts
// of the revision right after it, per the branch's advisory-lock scope).
func (p *Pipeline) Ask(ctx context.Context, branch, question string, opts Options) (Bundle, error) {
	branchRoot, err := p.WS.BranchRoot(branch)
	if err != nil {
		return Bundle{}, err
	}

	baseNames, headRevID, err := p.resolveBases(branchRoot, opts.Bases)
	if err != nil {
		return Bundle{}, err
	}
	if len(baseNames) == 0 {
		return Bundle{}, gikerrors.AskNoIndexedBases(branch)
	}

	expander := queryexpand.New()
	variants := expander.ExpandWithStack(question, opts.Stack)
	exhaustive := queryexpand.IsExhaustiveIntent(question)

	vectors, embErr := p.Embedder.EmbedBatch(ctx, variants)
	if embErr != nil {
		return Bundle{}, gikerrors.New(gikerrors.KindAskEmbeddingError, "failed to embed query variants", embErr)
	}
	queryVector := averageVectors(vectors, p.Embedder.Dimensions())

	topK := opts.TopK
	if topK <= 0 {
		topK = p.Config.Search.MaxResults
	}
	if topK <= 0 {
		topK = 10
	}

	results := make([]*baseResult, len(baseNames))
	g, gctx := errgroup.WithContext(ctx)
	workers := p.Config.Performance.AskWorkers
	if workers <= 0 {
		workers = 8
	}
	g.SetLimit(workers)

	for i, name := range baseNames {
		i, name := i, name
		g.Go(func() error {
			r, rErr := p.retrieveBase(gctx, branchRoot, name, question, queryVector, DefaultBasePoolSize)
			if rErr != nil {
				return gikerrors.New(gikerrors.KindAskSearchError, fmt.Sprintf("retrieval failed for base %q", name), rErr)
			}
			results[i] = r
			return nil
		})
	}
	if waitErr := g.Wait(); waitErr != nil {
		return Bundle{}, waitErr
	}

	var crossBaseLists []fusion.List
	entriesByID := make(map[string]basestore.SourceEntry)
	baseByChunk := make(map[string]string)
	candidatesPerBase := make(map[string]int)

	for _, r := range results {
		if r == nil {
			continue
		}
		items := make([]fusion.Item, 0, len(r.fused))
		for _, fr := range r.fused {
			items = append(items, fusion.Item{ID: fr.ID, Score: fr.Score})
			baseByChunk[fr.ID] = r.name
		}
		crossBaseLists = append(crossBaseLists, fusion.List{Name: r.name, Weight: 1, Items: items})
		for id, e := range r.entries {
			entriesByID[id] = e
		}
		candidatesPerBase[r.name] = r.poolCount
	}

	fuser := fusion.NewWithK(p.Config.Search.RRFConstant)
	merged := fuser.Fuse(crossBaseLists)
	sortFusedDeterministic(merged)

	rerankTopN := p.Config.Search.RerankTopN
	if rerankTopN <= 0 || rerankTopN > len(merged) {
		rerankTopN = len(merged)
	}
	candidateIDs := make([]string, 0, rerankTopN)
	candidateDocs := make([]string, 0, rerankTopN)
	finalScores := make(map[string]float64, rerankTopN)
	for i := 0; i < rerankTopN; i++ {
		id := merged[i].ID
		candidateIDs = append(candidateIDs, id)
		candidateDocs = append(candidateDocs, entriesByID[id].TextSnippet)
		finalScores[id] = merged[i].Score
	}

	rerankerUsed := false
	finalOrder := candidateIDs

	if p.Config.Search.RerankEnabled && p.Reranker != nil && p.Reranker.Available(ctx) && len(candidateDocs) > 0 {
		rrResults, rrErr := p.Reranker.Rerank(ctx, question, candidateDocs, topK)
		if rrErr == nil {
			rerankerUsed = true
			finalOrder = make([]string, 0, len(rrResults))
			for _, rr := range rrResults {
				id := candidateIDs[rr.Index]
				finalOrder = append(finalOrder, id)
				finalScores[id] = rr.Score
			}
		} else {
			p.Logger.Warn("reranker unavailable, falling back to fused order", "error", rrErr)
		}
	}

	if topK < len(finalOrder) {
		finalOrder = finalOrder[:topK]
	}

	ragChunks := make([]RagChunk, 0, len(finalOrder))
	seedIDs := make([]string, 0, len(finalOrder))
	for rank, id := range finalOrder {
		e, ok := entriesByID[id]
		if !ok {
			continue
		}
		baseName := baseByChunk[id]
		ragChunks = append(ragChunks, RagChunk{
			Base:     baseName,
			Path:     e.Path,
			Snippet:  e.TextSnippet,
			Score:    finalScores[id],
			Rank:     rank + 1,
			SourceID: e.ChunkID,
		})
		switch baseName {
		case "code":
			seedIDs = append(seedIDs, "file:"+e.Path)
		case "docs":
			seedIDs = append(seedIDs, "doc:"+e.Path)
		}
	}

	kgResult := p.buildKGContext(branchRoot, seedIDs, exhaustive)

	bundle := Bundle{
		RevisionID: headRevID,
		Question:   question,
		Bases:      baseNames,
		RagChunks:  ragChunks,
		KGResults:  kgResult,
	}
	if opts.Stack.Languages != nil || opts.Stack.Frameworks != nil {
		stack := opts.Stack
		bundle.StackSummary = &stack
	}
	if opts.Debug {
		bundle.Debug = &Debug{
			QueryVariants:     variants,
			ExhaustiveIntent:  exhaustive,
			CandidatesPerBase: candidatesPerBase,
			RerankerUsed:      rerankerUsed,
		}
	}
	return bundle, nil
}

// resolveBases returns the bases to query (requested subset, or every
// base with a sources.jsonl) and the branch's current HEAD revision id.
func (p *Pipeline) resolveBases(branchRoot string, requested []string) ([]string, string, error) {
	head, err := timeline.New(branchRoot).ReadHead()
	if err != nil {
		return nil, "", err
	}

	if len(requested) > 0 {
		return requested, head, nil
	}

	names, err := listBasesWithSources(branchRoot)
	if err != nil {
		return nil, "", err
	}
	return names, head, nil
}

func listBasesWithSources(branchRoot string) ([]string, error) {
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

// retrieveBase runs dense + sparse retrieval for one base and fuses them
// with RRF into a single per-base ranked list. A base with no vector
// index and/or no BM25 index yet (never committed, or committed but
// empty) simply contributes an empty list for that side rather than
// failing the whole Ask.
func (p *Pipeline) retrieveBase(ctx context.Context, branchRoot, baseName, question string, queryVector []float32, poolSize int) (*baseResult, error) {
	baseDir := filepath.Join(branchRoot, "bases", baseName)
	bs := basestore.New(baseDir)

	entries, err := bs.LoadSources()
	if err != nil {
		return nil, err
	}
	entryByID := make(map[string]basestore.SourceEntry, len(entries))
	for _, e := range entries {
		entryByID[e.ChunkID] = e
	}

	vecIdx, found, vecErr := store.LoadHNSWVectorIndex(filepath.Join(baseDir, "vector"))
	if vecErr != nil {
		return nil, vecErr
	}

	var vectorHits []fusion.Item
	if found {
		hits, qErr := vecIdx.Query(ctx, queryVector, poolSize, &store.Filter{Base: baseName})
		if qErr != nil {
			return nil, qErr
		}
		for _, h := range hits {
			vectorHits = append(vectorHits, fusion.Item{ID: h.ID, Score: float64(h.Score)})
		}
	}

	bm25 := store.NewScorerIndex(store.BM25Config{K1: p.Config.Search.BM25K1, B: p.Config.Search.BM25B, MinTokenLength: 2})
	var sparseHits []fusion.Item
	if loadErr := bm25.Load(filepath.Join(baseDir, "bm25", "index.bin")); loadErr == nil {
		bm25Results, sErr := bm25.Search(ctx, question, poolSize)
		if sErr != nil {
			return nil, sErr
		}
		for _, r := range bm25Results {
			sparseHits = append(sparseHits, fusion.Item{ID: r.DocID, Score: r.Score})
		}
	}

	fuser := fusion.NewWithK(p.Config.Search.RRFConstant)
	fused := fuser.Fuse([]fusion.List{
		{Name: "vector", Weight: p.Config.Search.VectorWeight, Items: vectorHits},
		{Name: "bm25", Weight: p.Config.Search.BM25Weight, Items: sparseHits},
	})

	return &baseResult{name: baseName, fused: fused, entries: entryByID, poolCount: len(vectorHits) + len(sparseHits)}, nil
}

// buildKGContext loads the branch's whole KG and runs a bounded BFS
// seeded at the file/doc nodes backing the winning chunks. When the
// query has exhaustive intent (e.g. "list every endpoint"), every node
// of a plausible listing target is added to the seed set as well, so a
// listing question is not limited to whichever files retrieval happened
// to surface.
func (p *Pipeline) buildKGContext(branchRoot string, seedIDs []string, exhaustive bool) KGResult {
	if !p.Config.KG.Enabled {
		return KGResult{}
	}

	kgStore := kgstore.New(branchRoot)
	nodes, nodesErr := kgStore.ReadAllNodes()
	if nodesErr != nil {
		return KGResult{}
	}
	edges, edgesErr := kgStore.ReadAllEdges()
	if edgesErr != nil {
		return KGResult{}
	}

	allSeeds := append([]string{}, seedIDs...)
	if exhaustive {
		for _, n := range nodes {
			if n.Kind == "endpoint" || kg.IsSymbolKind(n.Kind) {
				allSeeds = append(allSeeds, n.ID)
			}
		}
	}

	opts := kg.DefaultContextOptions()
	opts.MaxHops = p.Config.KG.MaxHops
	opts.MaxNodes = p.Config.KG.MaxNodes
	opts.MaxEdges = p.Config.KG.MaxEdges

	ctxResult := kg.BuildContext(nodes, edges, allSeeds, opts)
	return KGResult{Nodes: ctxResult.Nodes, Edges: ctxResult.Edges}
}

// averageVectors computes the element-wise mean of one or more equal-
// length embeddings, used to collapse a query's expansion variants into
// a single effective query vector for retrieval.
func averageVectors(vectors [][]float32, dim int) []float32 {
	out := make([]float32, dim)
	if len(vectors) == 0 {
		return out
	}
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

// sortFusedDeterministic re-sorts a fused result set by the same
// tie-break fusion.Fuse already applies (descending score, descending
// list count, ascending id). It is needed again here because the cross-
// base fuse operates over per-base lists that were each already fused
// once, and Go's map iteration order while building those lists is not
// itself deterministic.
func sortFusedDeterministic(results []*fusion.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ListCount != b.ListCount {
			return a.ListCount > b.ListCount
		}
		return a.ID < b.ID
	})
}
