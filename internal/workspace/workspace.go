// Package workspace resolves a filesystem root into a GIK workspace and
// maps branches onto their on-disk subtrees.
//
// The knowledge state for a workspace lives under R/.guided/knowledge/,
// with one independent subtree per branch at
// R/.guided/knowledge/<branch>/. This is distinct from any global config
// or log directory, which lives outside the workspace entirely.
package workspace

import (
	"os"
	"path/filepath"
	"regexp"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// MarkerDir is the directory, relative to the workspace root, that holds
// all per-branch knowledge state.
const MarkerDir = ".guided/knowledge"

// branchNamePattern matches the characters allowed in a branch name:
// letters, digits, underscore, hyphen, and slash (for namespaced branches
// such as "feature/foo").
var branchNamePattern = regexp.MustCompile(`^[A-Za-z0-9_/-]+$`)

// Workspace is a resolved GIK root: a directory containing (or eligible to
// contain) a .guided/knowledge marker subtree.
type Workspace struct {
	root string
}

// Root returns the filesystem path the workspace was resolved from.
func (w *Workspace) Root() string {
	return w.root
}

// KnowledgeDir returns R/.guided/knowledge.
func (w *Workspace) KnowledgeDir() string {
	return filepath.Join(w.root, filepath.FromSlash(MarkerDir))
}

// GlobalConfigPath returns R/.guided/knowledge/config.yaml, the config
// file shared by every branch of this workspace. It is not the user-level
// global config (see config.GlobalConfigPath), and config.Load does not
// read it.
func (w *Workspace) GlobalConfigPath() string {
	return filepath.Join(w.KnowledgeDir(), "config.yaml")
}

// BranchRoot returns R/.guided/knowledge/<branch>, after validating the
// branch name.
func (w *Workspace) BranchRoot(branch string) (string, error) {
	if err := ValidateBranchName(branch); err != nil {
		return "", err
	}
	return filepath.Join(w.KnowledgeDir(), filepath.FromSlash(branch)), nil
}

// IsInitialized reports whether the workspace's marker directory exists.
func (w *Workspace) IsInitialized() bool {
	info, err := os.Stat(w.KnowledgeDir())
	return err == nil && info.IsDir()
}

// IsBranchInitialized reports whether the given branch has an existing
// subtree (i.e. has at least been through Init).
func (w *Workspace) IsBranchInitialized(branch string) bool {
	root, err := w.BranchRoot(branch)
	if err != nil {
		return false
	}
	info, statErr := os.Stat(filepath.Join(root, "HEAD"))
	return statErr == nil && !info.IsDir()
}

// ValidateBranchName rejects empty strings and any character outside
// [A-Za-z0-9_/-].
func ValidateBranchName(name string) error {
	if name == "" {
		return gikerrors.New(gikerrors.KindInvalidBranchName, "branch name must not be empty", nil)
	}
	if !branchNamePattern.MatchString(name) {
		return gikerrors.New(gikerrors.KindInvalidBranchName,
			"branch name must match [A-Za-z0-9_/-]", nil).WithDetail("branch", name)
	}
	return nil
}

// Resolve walks upward from path looking for a .guided/knowledge marker
// directory, the same way version control tooling walks upward looking for
// a repository root. If no marker is found, it returns a Workspace rooted
// at path itself with IsInitialized() == false; callers that require an
// initialized workspace should check IsInitialized and surface
// NotInitialized themselves.
func Resolve(path string) (*Workspace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, gikerrors.Wrap(gikerrors.KindInvalidPath, err)
	}

	dir := abs
	for {
		marker := filepath.Join(dir, filepath.FromSlash(MarkerDir))
		if info, statErr := os.Stat(marker); statErr == nil && info.IsDir() {
			return &Workspace{root: dir}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return &Workspace{root: abs}, nil
}

// Init creates the workspace's marker directory if it does not already
// exist. It does not write config.yaml; that is the config package's job.
func Init(path string) (*Workspace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, gikerrors.Wrap(gikerrors.KindInvalidPath, err)
	}

	w := &Workspace{root: abs}
	if err := os.MkdirAll(w.KnowledgeDir(), 0o755); err != nil {
		return nil, gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}
	return w, nil
}

// RequireInitialized returns a NotInitialized error if the workspace's
// marker directory is absent.
func (w *Workspace) RequireInitialized() error {
	if !w.IsInitialized() {
		return gikerrors.NotInitialized(w.root)
	}
	return nil
}
