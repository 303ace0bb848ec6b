// Package queryexpand improves semantic-search recall on abstract or
// high-level queries by generating additional concrete query variants and
// by detecting when a query asks for an exhaustive listing rather than a
// best-effort similarity match.
package queryexpand

import (
	"strings"
)

// DefaultMaxVariants bounds how many variants Expand/ExpandWithStack
// return, including the original query.
const DefaultMaxVariants = 6

// StackSummary is the subset of a scanned project's stack relevant to
// query expansion: its detected languages and frameworks.
type StackSummary struct {
	Languages  []string
	Frameworks []string
}

// abstractTermMap maps conceptual query terms to concrete terms more
// likely to match indexed code and docs. Matching is a case-insensitive
// substring test; word boundaries are not checked.
var abstractTermMap = map[string][]string{
	"architecture":  {"structure", "layout", "design"},
	"organized":     {"structured", "laid out", "arranged"},
	"components":    {"modules", "pieces", "parts"},
	"configuration": {"config", "settings", "options"},
	"implementation": {"code", "logic", "behavior"},
	"workflow":      {"process", "pipeline", "flow"},
	"entry point":   {"main", "bootstrap", "startup"},
	"error handling": {"error", "exception", "failure"},
}

// stackAwareTerms maps a detected framework (case-insensitive) to extra
// terms appended to query variants when that framework is present in the
// project's stack.
var stackAwareTerms = map[string][]string{
	"react":   {"tsx", "react component"},
	"angular": {"component", "ts"},
	"vue":     {"vue component", "sfc"},
	"nextjs":  {"route", "app router"},
	"django":  {"view", "model"},
	"flask":   {"route", "view"},
	"rails":   {"controller", "model"},
	"spring":  {"controller", "service"},
	"express": {"router", "middleware"},
	"laravel": {"controller", "model"},
}

// exhaustiveMarkers are substrings (case-insensitive, already lowercase)
// whose presence signals the caller wants an exhaustive listing rather
// than a best-effort similarity match.
var exhaustiveMarkers = []string{
	"all ", "every ", "list of", "list all", "enumerate", "each ",
	"todas as rotas", "todos os", "todas as",
}

// Expander generates query variants bounded by MaxVariants.
type Expander struct {
	MaxVariants int
}

// New returns an Expander with the default variant cap.
func New() *Expander {
	return &Expander{MaxVariants: DefaultMaxVariants}
}

func (e *Expander) maxVariants() int {
	if e.MaxVariants > 0 {
		return e.MaxVariants
	}
	return DefaultMaxVariants
}

// Expand returns the original query plus abstract-term substitutions,
// capped at MaxVariants.
func (e *Expander) Expand(query string) []string {
	return e.ExpandWithStack(query, StackSummary{})
}

// ExpandWithStack returns the original query, abstract-term substitutions,
// and stack-aware additions derived from the project's detected
// frameworks, capped at MaxVariants. Each detected framework contributes
// additively, so callers with many frameworks rely on the cap to bound
// the result.
func (e *Expander) ExpandWithStack(query string, stack StackSummary) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}

	variants := []string{trimmed}
	seen := map[string]bool{strings.ToLower(trimmed): true}

	add := func(v string) bool {
		key := strings.ToLower(v)
		if seen[key] {
			return false
		}
		seen[key] = true
		variants = append(variants, v)
		return len(variants) >= e.maxVariants()
	}

	lower := strings.ToLower(trimmed)
	for term, substitutes := range abstractTermMap {
		if !strings.Contains(lower, term) {
			continue
		}
		for _, sub := range substitutes {
			variant := replaceWord(trimmed, term, sub)
			if variant == trimmed {
				continue
			}
			if add(variant) {
				return variants
			}
		}
	}

	for _, fw := range stack.Frameworks {
		terms, ok := stackAwareTerms[strings.ToLower(fw)]
		if !ok {
			continue
		}
		for _, t := range terms {
			if add(trimmed + " " + t) {
				return variants
			}
		}
	}

	return variants
}

// replaceWord performs a case-insensitive, single-occurrence-set
// replacement of term within s, preserving the surrounding text.
func replaceWord(s, term, replacement string) string {
	lowerS := strings.ToLower(s)
	idx := strings.Index(lowerS, term)
	if idx < 0 {
		return s
	}
	return s[:idx] + replacement + s[idx+len(term):]
}

// IsExhaustiveIntent reports whether query asks for an exhaustive listing
// (e.g. "all", "every", "list of", "todas as rotas") rather than a
// best-effort similarity match.
func IsExhaustiveIntent(query string) bool {
	lower := strings.ToLower(query)
	for _, marker := range exhaustiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
