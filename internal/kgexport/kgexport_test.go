package kgexport

import (
	"strings"
	"testing"

	"github.com/guided-indexing/gik/internal/kgstore"
	"github.com/stretchr/testify/assert"
)

func sampleGraph() ([]kgstore.Node, []kgstore.Edge) {
	nodes := []kgstore.Node{
		{ID: "file:main.go", Kind: "file", Name: "main.go"},
		{ID: `sym:go:main.go:function:New"Server`, Kind: "function", Name: `New"Server`},
	}
	edges := []kgstore.Edge{
		{From: "file:main.go", To: `sym:go:main.go:function:New"Server`, Kind: "defines"},
	}
	return nodes, edges
}

func TestToDOT_SanitizesIDsAndEscapesLabels(t *testing.T) {
	nodes, edges := sampleGraph()
	out := ToDOT(nodes, edges, Options{Title: "branch:main"})

	assert.True(t, strings.HasPrefix(out, "digraph branch_main {\n"))
	assert.Contains(t, out, "New")
	assert.Contains(t, out, "Server")
	assert.Contains(t, out, `\"`)
	assert.NotContains(t, out, "file:main.go [")
	assert.Contains(t, out, "->")
}

func TestToMermaid_RendersEdgeLabelsAndEscapesQuotes(t *testing.T) {
	nodes, edges := sampleGraph()
	out := ToMermaid(nodes, edges, Options{})

	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, "-->|defines|")
	assert.Contains(t, out, `\"`)
}

func TestSanitizeID_NeverEmptyOrLeadingDigit(t *testing.T) {
	assert.Equal(t, "n_", sanitizeID(""))
	assert.Equal(t, "n_123", sanitizeID("123"))
	assert.Equal(t, "file_a_go", sanitizeID("file:a.go"))
}
