package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// postingEntry records a document's term frequency for one term.
type postingEntry struct {
	DocID string
	Freq  int
}

// ScorerIndex implements BM25Index with a hand-rolled inverted index and
// the classic Okapi BM25 scoring formula:
//
//	score(D,Q) = sum_i IDF(q_i) * f(q_i,D)*(k1+1) / (f(q_i,D) + k1*(1-b+b*|D|/avgdl))
//	IDF(q_i)   = ln((N - df(q_i) + 0.5) / (df(q_i) + 0.5) + 1)
//
// The index is persisted as a single gob-encoded file; there is no
// background compaction, matching the append-then-rebuild-on-commit model
// used by the rest of the kernel's on-disk stores.
type ScorerIndex struct {
	mu sync.RWMutex

	config    BM25Config
	tokenizer *Tokenizer

	postings   map[string][]postingEntry // term -> postings
	docLengths map[string]int            // docID -> token count
	totalLen   int64
	closed     bool
}

// gobIndexState is the on-disk representation of ScorerIndex.
type gobIndexState struct {
	Config     BM25Config
	Postings   map[string][]postingEntry
	DocLengths map[string]int
	TotalLen   int64
}

// NewScorerIndex creates an empty BM25 index using the given configuration.
func NewScorerIndex(config BM25Config) *ScorerIndex {
	if config.K1 == 0 {
		config.K1 = 1.2
	}
	if config.MinTokenLength == 0 {
		config.MinTokenLength = 2
	}
	tokCfg := DefaultTokenizerConfig()
	tokCfg.MinTokenLength = config.MinTokenLength
	return &ScorerIndex{
		config:     config,
		tokenizer:  NewTokenizer(tokCfg),
		postings:   make(map[string][]postingEntry),
		docLengths: make(map[string]int),
	}
}

// Index adds or replaces documents in the index.
func (s *ScorerIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	for _, doc := range docs {
		s.removeLocked(doc.ID)

		tf := s.tokenizer.TokenizeWithTF(doc.Content)
		length := 0
		for term, freq := range tf {
			s.postings[term] = append(s.postings[term], postingEntry{DocID: doc.ID, Freq: freq})
			length += freq
		}
		s.docLengths[doc.ID] = length
		s.totalLen += int64(length)
	}

	return nil
}

// Search scores every document containing at least one query term and
// returns the top `limit` results in descending score order.
func (s *ScorerIndex) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(query) == "" {
		return []*BM25Result{}, nil
	}

	terms := s.tokenizer.Tokenize(query)
	if len(terms) == 0 {
		return []*BM25Result{}, nil
	}

	n := len(s.docLengths)
	if n == 0 {
		return []*BM25Result{}, nil
	}
	avgdl := float64(s.totalLen) / float64(n)

	scores := make(map[string]float64)
	matched := make(map[string]map[string]struct{})

	k1 := s.config.K1
	b := s.config.B

	for _, term := range dedupe(terms) {
		postings := s.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := len(postings)
		idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1.0)

		for _, p := range postings {
			dl := float64(s.docLengths[p.DocID])
			freq := float64(p.Freq)
			denom := freq + k1*(1-b+b*dl/avgdl)
			scores[p.DocID] += idf * (freq * (k1 + 1)) / denom

			if matched[p.DocID] == nil {
				matched[p.DocID] = make(map[string]struct{})
			}
			matched[p.DocID][term] = struct{}{}
		}
	}

	results := make([]*BM25Result, 0, len(scores))
	for docID, score := range scores {
		mt := make([]string, 0, len(matched[docID]))
		for t := range matched[docID] {
			mt = append(mt, t)
		}
		sort.Strings(mt)
		results = append(results, &BM25Result{DocID: docID, Score: score, MatchedTerms: mt})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID // deterministic tie-break
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Delete removes documents from the index.
func (s *ScorerIndex) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	for _, id := range docIDs {
		s.removeLocked(id)
	}
	return nil
}

// removeLocked removes a document's postings and length tracking. Caller
// must hold the write lock.
func (s *ScorerIndex) removeLocked(docID string) {
	length, exists := s.docLengths[docID]
	if !exists {
		return
	}
	s.totalLen -= int64(length)
	delete(s.docLengths, docID)

	for term, entries := range s.postings {
		filtered := entries[:0]
		for _, e := range entries {
			if e.DocID != docID {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(s.postings, term)
		} else {
			s.postings[term] = filtered
		}
	}
}

// AllIDs returns all document IDs in the index.
func (s *ScorerIndex) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	ids := make([]string, 0, len(s.docLengths))
	for id := range s.docLengths {
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats returns index statistics.
func (s *ScorerIndex) Stats() *IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || len(s.docLengths) == 0 {
		return &IndexStats{}
	}

	return &IndexStats{
		DocumentCount: len(s.docLengths),
		TermCount:     len(s.postings),
		AvgDocLength:  float64(s.totalLen) / float64(len(s.docLengths)),
	}
}

// Save persists the index to disk as a single gob file (atomic rename).
func (s *ScorerIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	state := gobIndexState{
		Config:     s.config,
		Postings:   s.postings,
		DocLengths: s.docLengths,
		TotalLen:   s.totalLen,
	}
	if err := gob.NewEncoder(f).Encode(state); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	return os.Rename(tmp, path)
}

// Load replaces the in-memory index with the contents of a gob file.
func (s *ScorerIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var state gobIndexState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}

	s.config = state.Config
	s.postings = state.Postings
	s.docLengths = state.DocLengths
	s.totalLen = state.TotalLen
	s.closed = false

	tokCfg := DefaultTokenizerConfig()
	tokCfg.MinTokenLength = s.config.MinTokenLength
	s.tokenizer = NewTokenizer(tokCfg)

	return nil
}

// Close marks the index closed. No resources to release beyond memory.
func (s *ScorerIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Verify interface implementation.
var _ BM25Index = (*ScorerIndex)(nil)
