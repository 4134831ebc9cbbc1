//go:build !linux && !darwin

package engine

import "os"

// acquireLock degrades to a no-op on platforms without unix.Flock
// (SPEC_FULL.md §3): the single-writer assumption still holds, this
// build just cannot fail fast if it's violated.
func acquireLock(path string) (*os.File, error) {
	return nil, nil
}

func releaseLock(f *os.File) error {
	return nil
}
