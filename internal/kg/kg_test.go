package kg

import (
	"testing"

	"github.com/guided-indexing/gik/internal/extract"
	"github.com/guided-indexing/gik/internal/kgstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncBranch_EmitsFileAndSymbolNodes(t *testing.T) {
	store := kgstore.New(t.TempDir())
	registry := extract.NewRegistry()

	sources := []Source{
		{Base: "code", Path: "main.go", Text: "package main\n\nfunc NewServer() {}\n"},
	}

	result, err := SyncBranch(store, registry, sources)
	require.NoError(t, err)
	assert.Greater(t, result.NodeCount, 0)
	assert.Greater(t, result.EdgeCount, 0)

	nodes, err := store.ReadAllNodes()
	require.NoError(t, err)

	var hasFileNode, hasFuncNode bool
	for _, n := range nodes {
		if n.ID == "file:main.go" {
			hasFileNode = true
		}
		if n.Kind == "function" && n.Name == "NewServer" {
			hasFuncNode = true
		}
	}
	assert.True(t, hasFileNode)
	assert.True(t, hasFuncNode)
}

func TestSyncBranch_DetectsAppRouterEndpoint(t *testing.T) {
	store := kgstore.New(t.TempDir())
	registry := extract.NewRegistry()

	sources := []Source{
		{Base: "code", Path: "src/app/api/users/route.ts", Text: "export async function GET() {}\nexport async function POST() {}\n"},
	}

	result, err := SyncBranch(store, registry, sources)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	nodes, err := store.ReadAllNodes()
	require.NoError(t, err)

	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.Contains(t, ids, "endpoint:GET:/api/users")
	assert.Contains(t, ids, "endpoint:POST:/api/users")
}

func TestSyncBranch_WarnsOnRouteFileWithNoMethods(t *testing.T) {
	store := kgstore.New(t.TempDir())
	registry := extract.NewRegistry()

	sources := []Source{
		{Base: "code", Path: "app/api/health/route.ts", Text: "const handler = () => {}\n"},
	}

	result, err := SyncBranch(store, registry, sources)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "no HTTP methods")
}

func TestSyncBranch_ClearsPreviousGraph(t *testing.T) {
	store := kgstore.New(t.TempDir())
	registry := extract.NewRegistry()

	_, err := SyncBranch(store, registry, []Source{
		{Base: "code", Path: "a.go", Text: "package main\nfunc A() {}\n"},
	})
	require.NoError(t, err)

	_, err = SyncBranch(store, registry, []Source{
		{Base: "code", Path: "b.go", Text: "package main\nfunc B() {}\n"},
	})
	require.NoError(t, err)

	nodes, err := store.ReadAllNodes()
	require.NoError(t, err)
	for _, n := range nodes {
		assert.NotEqual(t, "file:a.go", n.ID)
	}
}

func TestBuildContext_BoundsByHopsAndCaps(t *testing.T) {
	nodes := []kgstore.Node{
		{ID: "file:a.go", Kind: "file"},
		{ID: "sym:go:a.go:function:A", Kind: "function"},
		{ID: "sym:go:a.go:function:B", Kind: "function"},
		{ID: "file:c.go", Kind: "file"},
	}
	edges := []kgstore.Edge{
		{From: "file:a.go", To: "sym:go:a.go:function:A", Kind: "defines"},
		{From: "sym:go:a.go:function:A", To: "sym:go:a.go:function:B", Kind: "calls"},
		{From: "sym:go:a.go:function:B", To: "file:c.go", Kind: "calls"},
	}

	ctx := BuildContext(nodes, edges, []string{"file:a.go"}, ContextOptions{MaxHops: 1})
	var ids []string
	for _, n := range ctx.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Contains(t, ids, "file:a.go")
	assert.Contains(t, ids, "sym:go:a.go:function:A")
	assert.NotContains(t, ids, "file:c.go")
}
