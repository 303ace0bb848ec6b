// Package branchlock provides the per-branch advisory lock taken by
// commit, reindex, and KG sync for the duration of their operation. ask
// never takes this lock: it reads whatever HEAD resolves to at entry.
package branchlock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// FileName is the advisory lock file created inside a branch's subtree.
const FileName = ".branch.lock"

// Lock wraps a gofrs/flock advisory lock scoped to one branch directory.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New returns a Lock for the given branch root (R/.guided/knowledge/<branch>).
func New(branchRoot string) *Lock {
	path := filepath.Join(branchRoot, FileName)
	return &Lock{path: path, flock: flock.New(path)}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// TryLock attempts to acquire the lock without blocking. It returns
// LockHeld if another process already holds it.
func (l *Lock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindBaseStoreIO, err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindLockHeld, err)
	}
	if !acquired {
		return gikerrors.LockHeld(l.path)
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked Lock.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return gikerrors.Wrap(gikerrors.KindLockHeld, err)
	}
	l.locked = false
	return nil
}

// IsLocked reports whether this Lock instance currently holds the lock.
func (l *Lock) IsLocked() bool {
	return l.locked
}

// WithLock acquires the branch lock, runs fn, and releases the lock
// afterward regardless of whether fn returns an error. This is the
// standard entry point for commit, reindex, and KG sync so that the lock
// is always released on every exit path.
func WithLock(branchRoot string, fn func() error) error {
	l := New(branchRoot)
	if err := l.TryLock(); err != nil {
		return err
	}
	defer func() { _ = l.Unlock() }()
	return fn()
}
