package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBinaryExtension(t *testing.T) {
	assert.True(t, IsBinaryExtension("logo.PNG"))
	assert.True(t, IsBinaryExtension("archive.zip"))
	assert.False(t, IsBinaryExtension("main.go"))
}

func TestLoadWorkspaceMatcher_AppliesDefaultExcludes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	m, err := LoadWorkspaceMatcher(root)
	require.NoError(t, err)

	assert.True(t, m.Match("node_modules", true))
	assert.False(t, m.Match("src", true))
}

func TestLoadWorkspaceMatcher_LoadsNestedGikignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", FileName), []byte("*.tmp\n"), 0o644))

	m, err := LoadWorkspaceMatcher(root)
	require.NoError(t, err)

	assert.True(t, m.Match("sub/scratch.tmp", false))
	assert.False(t, m.Match("scratch.tmp", false))
}
