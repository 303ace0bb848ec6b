package store

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// TokenizerConfig controls the BM25 text preprocessing pipeline.
type TokenizerConfig struct {
	// Stemming applies Porter stemming (English) to each token.
	Stemming bool
	// RemoveStopwords filters tokens found in the stop word list.
	RemoveStopwords bool
	// MinTokenLength is the minimum token length to keep, checked both
	// before and after stemming.
	MinTokenLength int
}

// DefaultTokenizerConfig returns the default preprocessing configuration.
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		Stemming:        true,
		RemoveStopwords: true,
		MinTokenLength:  2,
	}
}

// Tokenizer splits text into normalized, stemmed terms for BM25 indexing.
//
// Pipeline: unicode word segmentation, lowercasing, filtering of
// non-alphabetic tokens, minimum-length filtering, stop word removal,
// Porter stemming, then a second minimum-length filter (some stems shrink
// below the threshold).
type Tokenizer struct {
	config    TokenizerConfig
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the given configuration.
func NewTokenizer(config TokenizerConfig) *Tokenizer {
	return &Tokenizer{
		config:    config,
		stopWords: BuildStopWordMap(DefaultStopWords),
	}
}

// NewDefaultTokenizer creates a tokenizer with default configuration.
func NewDefaultTokenizer() *Tokenizer {
	return NewTokenizer(DefaultTokenizerConfig())
}

// Tokenize processes text into a slice of normalized terms.
func (t *Tokenizer) Tokenize(text string) []string {
	words := unicodeWords(text)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if tok, ok := t.processToken(w); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// TokenizeWithTF tokenizes text and returns term frequencies.
func (t *Tokenizer) TokenizeWithTF(text string) map[string]int {
	tf := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		tf[tok]++
	}
	return tf
}

func (t *Tokenizer) processToken(word string) (string, bool) {
	lower := strings.ToLower(word)

	if !containsAlpha(lower) {
		return "", false
	}

	if len([]rune(lower)) < t.config.MinTokenLength {
		return "", false
	}

	if t.config.RemoveStopwords {
		if _, isStop := t.stopWords[lower]; isStop {
			return "", false
		}
	}

	token := lower
	if t.config.Stemming {
		token = porterstemmer.StemString(lower)
	}

	if len([]rune(token)) < t.config.MinTokenLength {
		return "", false
	}

	return token, true
}

// containsAlpha reports whether s has at least one alphabetic rune.
func containsAlpha(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// unicodeWords splits text into word-like runs of letters and digits,
// approximating UAX #29 word segmentation closely enough for code and
// prose search text: a maximal run of letters and digits forms one word,
// an apostrophe inside a word and followed by a letter is kept, and
// everything else (underscore included) is a separator.
func unicodeWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		case r == '\'' && current.Len() > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return words
}

// BuildStopWordMap converts a slice of stop words to a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// DefaultStopWords is a curated English stop word list for code and
// documentation search. It deliberately excludes words that carry meaning
// in code contexts, such as "do", "return", "for", and "if".
var DefaultStopWords = []string{
	// Articles
	"a", "an", "the",
	// Prepositions
	"in", "on", "at", "to", "of", "with", "by", "from", "as", "into", "through", "during",
	"before", "after", "above", "below", "between", "under", "over", "out", "up", "down", "off",
	// Conjunctions
	"and", "or", "but", "nor", "so", "yet",
	// Pronouns
	"i", "you", "he", "she", "it", "we", "they", "me", "him", "her", "us", "them", "my",
	"your", "his", "its", "our", "their", "this", "that", "these", "those", "which", "who",
	"whom", "whose", "what", "where", "when", "how", "why",
	// Common verbs (code-relevant verbs like "do", "return" are kept)
	"is", "are", "was", "were", "be", "been", "being", "have", "has", "had", "having",
	"does", "did", "doing", "will", "would", "could", "should", "may", "might", "must",
	"shall", "can", "need", "dare", "ought",
	// Other common words
	"not", "no", "yes", "all", "any", "both", "each", "few", "more", "most", "other",
	"some", "such", "than", "too", "very", "just", "also", "only", "own", "same", "then",
	"there", "here", "now", "always", "never", "ever",
	// Question/relative
	"about", "whether",
}
