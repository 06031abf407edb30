package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// The session store is shared between independent processes, so every
// read-modify-write happens under an OS advisory lock spanning the whole
// file. These helpers are the only place that touches flock directly;
// callers pass a function that runs while the lock is held.

// WithExclusiveLock opens path (creating it if needed), takes an exclusive
// advisory lock and runs fn with the open file positioned at the start.
func WithExclusiveLock(path string, fn func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock store dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open lock store: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("flock exclusive: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn(f)
}

// WithSharedLock opens path read-only under a shared advisory lock.
// A missing file is reported as os.ErrNotExist, not created.
func WithSharedLock(path string, fn func(f *os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open lock store: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return fmt.Errorf("flock shared: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn(f)
}
