// Package fusion implements Reciprocal Rank Fusion (RRF) over any number
// of ranked lists, used both to merge a base's dense and sparse retrieval
// results and to merge per-base bundles into a single ranked answer set.
package fusion

import "sort"

// DefaultK is the standard RRF smoothing constant, matching the value
// used by Azure AI Search, OpenSearch, and similar hybrid search systems.
const DefaultK = 60

// Item is a single entry in a ranked list, identified by a stable id.
type Item struct {
	ID    string
	Score float64
}

// List is one named ranked list (e.g. "bm25", "vector", or a base name
// when fusing across bases) with an associated fusion weight.
type List struct {
	Name   string
	Weight float64
	Items  []Item
}

// Result is one document's fused outcome: its combined score plus enough
// per-list detail for tie-breaking and display.
type Result struct {
	ID          string
	Score       float64
	Ranks       map[string]int     // 1-indexed rank per list name, absent if not in that list
	ListScores  map[string]float64 // original score per list name
	ListCount   int                // number of lists this document appeared in
}

// Fuser runs RRF with a configurable smoothing constant.
type Fuser struct {
	K int
}

// New returns a Fuser with the default k=60.
func New() *Fuser {
	return &Fuser{K: DefaultK}
}

// NewWithK returns a Fuser with a custom k; k<=0 falls back to DefaultK.
func NewWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	return &Fuser{K: k}
}

// Fuse combines any number of ranked lists into one ranked result set.
// Documents missing from a list contribute zero for that list (no
// missing-rank penalty is added, since there is no multiplier weight to
// apply for lists a document never appeared in, unlike a fixed two-list
// case); equal fused scores are ordered by how many lists a document
// appeared in (more first), then deterministically by ascending id.
func (f *Fuser) Fuse(lists []List) []*Result {
	byID := make(map[string]*Result)

	for _, list := range lists {
		weight := list.Weight
		if weight == 0 {
			weight = 1
		}
		for rank, item := range list.Items {
			r, ok := byID[item.ID]
			if !ok {
				r = &Result{ID: item.ID, Ranks: map[string]int{}, ListScores: map[string]float64{}}
				byID[item.ID] = r
			}
			oneIndexed := rank + 1
			r.Score += weight / float64(f.K+oneIndexed)
			r.Ranks[list.Name] = oneIndexed
			r.ListScores[list.Name] = item.Score
			r.ListCount++
		}
	}

	results := make([]*Result, 0, len(byID))
	for _, r := range byID {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return compare(results[i], results[j])
	})

	return results
}

// compare orders by descending fused score, then by how many lists a
// document appeared in, then lexicographically by id for determinism.
func compare(a, b *Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ListCount != b.ListCount {
		return a.ListCount > b.ListCount
	}
	return a.ID < b.ID
}
