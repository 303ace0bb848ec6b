package branchlock

import (
	"testing"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock_AcquiresAndReleases(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	require.NoError(t, l.TryLock())
	assert.True(t, l.IsLocked())

	require.NoError(t, l.Unlock())
	assert.False(t, l.IsLocked())
}

func TestTryLock_FailsWhenAlreadyHeld(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	require.NoError(t, first.TryLock())
	defer func() { _ = first.Unlock() }()

	second := New(dir)
	err := second.TryLock()
	require.Error(t, err)
	assert.Equal(t, gikerrors.KindLockHeld, gikerrors.GetKind(err))
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	dir := t.TempDir()

	err := WithLock(dir, func() error {
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)

	l := New(dir)
	require.NoError(t, l.TryLock())
	require.NoError(t, l.Unlock())
}
