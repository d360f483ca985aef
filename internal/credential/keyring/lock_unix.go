//go:build !windows

package keyring

import (
	"os"
	"syscall"
)

// lockFile takes an exclusive flock on f, blocking until it is free.
// The returned func releases it.
func lockFile(f *os.File) (unlock func(), err error) {
	fd := int(f.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX); err != nil {
		return nil, err
	}
	return func() { _ = syscall.Flock(fd, syscall.LOCK_UN) }, nil
}
