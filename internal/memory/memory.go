// Package memory implements the memory base: a specialized knowledge base
// whose entries carry a scope and source-category tag alongside the text,
// plus token-estimate metrics and an explicit (never automatic) pruning
// policy.
package memory

import (
	"time"

	"github.com/guided-indexing/gik/internal/basestore"
	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// Scope distinguishes a memory entry's lifetime: a single working session
// versus the whole project.
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeProject Scope = "project"
)

// Category classifies why a memory entry was recorded.
type Category string

const (
	CategoryDecision    Category = "decision"
	CategoryObservation Category = "observation"
	CategoryNote        Category = "note"
	CategorySummary     Category = "summary"
)

// NewEntry builds a basestore.SourceEntry for a memory note. Tagging and
// fingerprinting otherwise follow the same conventions as any other base
// source; callers still run it through the normal embed/index path.
func NewEntry(chunkID, text string, scope Scope, category Category, fingerprint, revisionID string, indexedAt time.Time) basestore.SourceEntry {
	return basestore.SourceEntry{
		ChunkID:     chunkID,
		SourceURI:   "memory:" + chunkID,
		TextSnippet: text,
		Fingerprint: fingerprint,
		Language:    "text",
		IndexedAt:   indexedAt,
		RevisionID:  revisionID,
		Scope:       string(scope),
		Category:    string(category),
	}
}

// EstimateTokens approximates a token count from character length, the
// documented ~chars/4 heuristic.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// AgeBucket names a coarse age grouping for memory metrics.
type AgeBucket string

const (
	AgeToday     AgeBucket = "today"
	AgeThisWeek  AgeBucket = "this_week"
	AgeThisMonth AgeBucket = "this_month"
	AgeOlder     AgeBucket = "older"
)

func bucketFor(age time.Duration) AgeBucket {
	switch {
	case age < 24*time.Hour:
		return AgeToday
	case age < 7*24*time.Hour:
		return AgeThisWeek
	case age < 30*24*time.Hour:
		return AgeThisMonth
	default:
		return AgeOlder
	}
}

// BucketMetrics aggregates entry and token counts for one age bucket.
type BucketMetrics struct {
	EntryCount     int
	EstimatedTokens int
}

// Metrics summarizes a memory base: total entry/token counts plus a
// per-age-bucket breakdown.
type Metrics struct {
	TotalEntries int
	TotalTokens  int
	ByBucket     map[AgeBucket]BucketMetrics
}

// Compute builds Metrics for entries as observed at now.
func Compute(entries []basestore.SourceEntry, now time.Time) Metrics {
	m := Metrics{ByBucket: make(map[AgeBucket]BucketMetrics)}
	for _, e := range entries {
		tokens := EstimateTokens(e.TextSnippet)
		m.TotalEntries++
		m.TotalTokens += tokens

		bucket := bucketFor(now.Sub(e.IndexedAt))
		bm := m.ByBucket[bucket]
		bm.EntryCount++
		bm.EstimatedTokens += tokens
		m.ByBucket[bucket] = bm
	}
	return m
}

// Mode selects how Prune disposes of entries that violate the policy.
type Mode string

const (
	// ModeDelete removes matching entries outright.
	ModeDelete Mode = "delete"
	// ModeArchive removes matching entries from the index but preserves
	// an audit record (an Event) of what was removed and why.
	ModeArchive Mode = "archive"
)

// Policy bounds a memory base. Pruning is always explicit: nothing in
// this package runs Prune on its own, callers must invoke it, and a nil
// Policy is rejected rather than treated as "do nothing".
type Policy struct {
	MaxEntries         int
	MaxEstimatedTokens int
	MaxAgeDays         int
	ObsoleteTags       []string
	Mode               Mode
}

// Event is an audit record of one entry affected by a Prune call.
type Event struct {
	ChunkID string
	Action  Mode
	Reason  string
	At      time.Time
}

func hasObsoleteTag(e basestore.SourceEntry, tags []string) (string, bool) {
	for _, t := range tags {
		if e.Category == t || e.Scope == t {
			return t, true
		}
	}
	return "", false
}

// Prune applies policy to entries (oldest-first, by IndexedAt) and
// returns the entries that remain indexed, the events describing what
// was removed, and an error if policy is nil — the caller must supply an
// explicit policy, since pruning never runs implicitly.
func Prune(entries []basestore.SourceEntry, policy *Policy, now time.Time) (kept []basestore.SourceEntry, events []Event, err error) {
	if policy == nil {
		return nil, nil, gikerrors.New(gikerrors.KindMissingPruningPolicy, "memory prune requires an explicit policy", nil)
	}

	ordered := make([]basestore.SourceEntry, len(entries))
	copy(ordered, entries)
	sortByIndexedAtAscending(ordered)

	kept = make([]basestore.SourceEntry, 0, len(ordered))
	var tokenRunningTotal int

	for _, e := range ordered {
		if reason, obsolete := hasObsoleteTag(e, policy.ObsoleteTags); obsolete {
			events = append(events, Event{ChunkID: e.ChunkID, Action: policy.Mode, Reason: "obsolete tag: " + reason, At: now})
			continue
		}
		if policy.MaxAgeDays > 0 {
			age := now.Sub(e.IndexedAt)
			if age > time.Duration(policy.MaxAgeDays)*24*time.Hour {
				events = append(events, Event{ChunkID: e.ChunkID, Action: policy.Mode, Reason: "exceeds max age", At: now})
				continue
			}
		}
		kept = append(kept, e)
		tokenRunningTotal += EstimateTokens(e.TextSnippet)
	}

	if policy.MaxEntries > 0 && len(kept) > policy.MaxEntries {
		overflow := len(kept) - policy.MaxEntries
		for i := 0; i < overflow; i++ {
			events = append(events, Event{ChunkID: kept[i].ChunkID, Action: policy.Mode, Reason: "exceeds max entries", At: now})
		}
		kept = kept[overflow:]
	}

	if policy.MaxEstimatedTokens > 0 {
		total := 0
		for _, e := range kept {
			total += EstimateTokens(e.TextSnippet)
		}
		i := 0
		for total > policy.MaxEstimatedTokens && i < len(kept) {
			total -= EstimateTokens(kept[i].TextSnippet)
			events = append(events, Event{ChunkID: kept[i].ChunkID, Action: policy.Mode, Reason: "exceeds max estimated tokens", At: now})
			i++
		}
		kept = kept[i:]
	}

	return kept, events, nil
}

func sortByIndexedAtAscending(entries []basestore.SourceEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].IndexedAt.Before(entries[j-1].IndexedAt); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
