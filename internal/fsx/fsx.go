// Package fsx provides atomic file writes and the output-directory lock.
package fsx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created inside the output directory
const LockFileName = ".imgqueue.lock"

// ErrLocked indicates another run holds the output directory lock
var ErrLocked = errors.New("output directory is in use by another run")

// replaceable in tests
var renameFunc = os.Rename

// WriteFileAtomic streams write into a temporary file next to dst and renames
// it over dst once write and fsync succeed. On any failure the temporary file
// is removed and dst is left untouched.
func WriteFileAtomic(dst string, perm os.FileMode, write func(w io.Writer) error) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFunc(tmpName, dst); err != nil {
		return err
	}
	committed = true

	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// DirLock is an advisory lock on an output directory, held for one run
type DirLock struct {
	path string
	lock *flock.Flock
}

// LockDir acquires the lock file inside dir without blocking. It returns
// ErrLocked when another process holds it.
func LockDir(dir string) (*DirLock, error) {
	path := filepath.Join(dir, LockFileName)
	lock := flock.New(path)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &DirLock{path: path, lock: lock}, nil
}

// Path returns the lock file path
func (l *DirLock) Path() string {
	return l.path
}

// Unlock releases the lock and removes the lock file. Calling it again is a no-op.
func (l *DirLock) Unlock() error {
	if l == nil || !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}
