package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizer_BasicTokenization(t *testing.T) {
	tok := NewDefaultTokenizer()
	tokens := tok.Tokenize("Hello World")

	assert.Len(t, tokens, 2)
	assert.Contains(t, tokens, "hello")
	assert.Contains(t, tokens, "world")
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewDefaultTokenizer()
	tokens := tok.Tokenize("the quick brown fox")

	assert.NotContains(t, tokens, "the")
	assert.Contains(t, tokens, "quick")
}

func TestTokenizer_Stemming(t *testing.T) {
	tok := NewDefaultTokenizer()
	tokens := tok.Tokenize("running runs")

	for _, token := range tokens {
		assert.Equal(t, "run", token)
	}
}

func TestTokenizer_NoStemming(t *testing.T) {
	cfg := DefaultTokenizerConfig()
	cfg.Stemming = false
	tok := NewTokenizer(cfg)
	tokens := tok.Tokenize("running runs runner")

	assert.Contains(t, tokens, "running")
	assert.Contains(t, tokens, "runs")
	assert.Contains(t, tokens, "runner")
}

func TestTokenizer_CodeRelevantWordsKept(t *testing.T) {
	tok := NewDefaultTokenizer()
	tokens := tok.Tokenize("if you return early, do the loop")

	assert.Contains(t, tokens, "if")
	assert.Contains(t, tokens, "return")
	assert.Contains(t, tokens, "do")
}

func TestTokenizer_MinLengthFiltering(t *testing.T) {
	tok := NewDefaultTokenizer()
	tokens := tok.Tokenize("a b c de foo bar")

	assert.NotContains(t, tokens, "a")
	assert.NotContains(t, tokens, "b")
	assert.NotContains(t, tokens, "c")
	assert.Contains(t, tokens, "de")
	assert.Contains(t, tokens, "foo")
}

func TestTokenizer_TermFrequencies(t *testing.T) {
	tok := NewDefaultTokenizer()
	tf := tok.TokenizeWithTF("foo bar foo baz foo")

	assert.Equal(t, 3, tf["foo"])
	assert.Equal(t, 1, tf["bar"])
	assert.Equal(t, 1, tf["baz"])
}

func TestTokenizer_MixedContent(t *testing.T) {
	tok := NewDefaultTokenizer()
	tokens := tok.Tokenize("The function returns 42 items from database")

	assert.NotContains(t, tokens, "the")
	assert.Contains(t, tokens, "function")
	assert.Contains(t, tokens, "return")
	assert.Contains(t, tokens, "item")
}
