//go:build windows

package keyring

import "os"

// lockFile is a no-op on Windows. Credential Manager is the primary
// backend there, so the unlocked file fallback only races on first-time
// key creation.
func lockFile(_ *os.File) (unlock func(), err error) {
	return func() {}, nil
}
