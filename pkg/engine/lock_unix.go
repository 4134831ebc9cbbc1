//go:build linux || darwin

package engine

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// acquireLock takes a non-blocking advisory lock on the engine's
// directory (SPEC_FULL.md §3's single-writer guard). It returns
// ErrDirectoryLocked if another process already holds it.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("engine: open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrDirectoryLocked
		}
		return nil, fmt.Errorf("engine: flock %s: %w", path, err)
	}
	return f, nil
}

func releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}
