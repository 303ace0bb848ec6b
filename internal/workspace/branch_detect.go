package workspace

import (
	"github.com/go-git/go-git/v5"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// BranchDetector infers the active branch name from context external to
// the knowledge workspace itself (typically the host VCS checkout).
// Implementations are advisory only: the returned name is still run
// through ValidateBranchName before it is trusted anywhere in the kernel.
type BranchDetector interface {
	DetectBranch(root string) (string, error)
}

// GitBranchDetector infers the branch from a go-git checkout rooted at (or
// above) the workspace root. It can be passed to CurrentBranch as its
// detector; the gik command does not use it and takes the branch as an
// explicit argument.
type GitBranchDetector struct{}

// DetectBranch opens the git repository containing root and returns the
// short name of its current HEAD reference.
func (GitBranchDetector) DetectBranch(root string) (string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", gikerrors.Wrap(gikerrors.KindBranchDetectionFailed, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", gikerrors.Wrap(gikerrors.KindBranchDetectionFailed, err)
	}

	return head.Name().Short(), nil
}

// CurrentBranch resolves the active branch name: it prefers an explicit
// override, falls back to detector, and finally falls back to
// defaultBranch if neither is available or the detector fails.
func CurrentBranch(override string, detector BranchDetector, root string, defaultBranch string) string {
	if override != "" {
		return override
	}
	if detector != nil {
		if name, err := detector.DetectBranch(root); err == nil && name != "" {
			if ValidateBranchName(name) == nil {
				return name
			}
		}
	}
	return defaultBranch
}
