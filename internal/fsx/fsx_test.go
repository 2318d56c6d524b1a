package fsx

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func assertNoTemp(t *testing.T, dir, base string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."+base+".tmp-"), "temporary file left behind: %s", e.Name())
	}
}

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "a.png")

	require.NoError(t, WriteFileAtomic(dst, 0o644, writeString("hello")))

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assertNoTemp(t, filepath.Dir(dst), "a.png")
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	require.NoError(t, WriteFileAtomic(dst, 0o644, writeString("new")))

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}

func TestWriteFileAtomic_WriterFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	boom := errors.New("encode failed")
	err := WriteFileAtomic(dst, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
	assertNoTemp(t, dir, "a.png")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomic(filepath.Join(dir, "a.png"), 0o644, writeString("hello"))
	require.ErrorIs(t, err, os.ErrPermission)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLockDir(t *testing.T) {
	dir := t.TempDir()

	lock, err := LockDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())
	assert.FileExists(t, lock.Path())

	_, err = LockDir(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Unlock())
	assert.NoFileExists(t, lock.Path())
	require.NoError(t, lock.Unlock(), "second unlock is a no-op")

	again, err := LockDir(dir)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestLockDir_MissingDirectory(t *testing.T) {
	_, err := LockDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}
