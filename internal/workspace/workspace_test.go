package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_FindsMarkerInAncestorDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(MarkerDir)), 0o755))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	ws, err := Resolve(nested)
	require.NoError(t, err)
	assert.True(t, ws.IsInitialized())
	assert.Equal(t, root, ws.Root())
}

func TestResolve_NoMarkerIsNotInitialized(t *testing.T) {
	root := t.TempDir()

	ws, err := Resolve(root)
	require.NoError(t, err)
	assert.False(t, ws.IsInitialized())
	assert.Error(t, ws.RequireInitialized())
}

func TestInit_CreatesMarkerDirectory(t *testing.T) {
	root := t.TempDir()

	ws, err := Init(root)
	require.NoError(t, err)
	assert.True(t, ws.IsInitialized())

	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(MarkerDir)))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestValidateBranchName(t *testing.T) {
	assert.NoError(t, ValidateBranchName("main"))
	assert.NoError(t, ValidateBranchName("feature/foo-bar_1"))
	assert.Error(t, ValidateBranchName(""))
	assert.Error(t, ValidateBranchName("feature foo"))
	assert.Error(t, ValidateBranchName("feature@foo"))
}

func TestBranchRoot_RejectsInvalidBranch(t *testing.T) {
	ws, err := Init(t.TempDir())
	require.NoError(t, err)

	_, err = ws.BranchRoot("bad branch")
	assert.Error(t, err)

	root, err := ws.BranchRoot("main")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.KnowledgeDir(), "main"), root)
}

func TestIsBranchInitialized(t *testing.T) {
	ws, err := Init(t.TempDir())
	require.NoError(t, err)

	assert.False(t, ws.IsBranchInitialized("main"))

	branchRoot, err := ws.BranchRoot("main")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(branchRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(branchRoot, "HEAD"), []byte("deadbeef"), 0o644))

	assert.True(t, ws.IsBranchInitialized("main"))
}

func TestCurrentBranch_OverrideWinsOverDetector(t *testing.T) {
	got := CurrentBranch("release", stubDetector{name: "main"}, "/tmp", "main")
	assert.Equal(t, "release", got)
}

func TestCurrentBranch_FallsBackToDefaultOnDetectorFailure(t *testing.T) {
	got := CurrentBranch("", stubDetector{err: assert.AnError}, "/tmp", "main")
	assert.Equal(t, "main", got)
}

type stubDetector struct {
	name string
	err  error
}

func (s stubDetector) DetectBranch(string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.name, nil
}
