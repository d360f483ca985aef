// Package keyring provides secure storage for the provider key
// encryption key.
//
// Platform requirements:
//   - macOS: Uses Keychain via Security framework (works out of the box)
//   - Linux: Requires libsecret (GNOME), kwallet (KDE), or pass (CLI)
//   - Windows: Uses Windows Credential Manager (works out of the box)
//   - Headless/CI: Automatically falls back to file-based storage at ~/.autobuild/encryption.key
//
// The package attempts to store keys in the system keychain first. If the
// keychain is unavailable (CI, headless servers, containers), it silently
// falls back to file-based storage with restricted permissions (0600).
//
// Concurrency: key creation is protected by a global file lock
// (~/.autobuild/key.lock) so concurrent first runs cannot race each other
// into creating different keys. Both backends check for an existing key
// before writing. On Windows, file locking is a no-op, but Credential
// Manager is the primary backend there and the file fallback is rare.
//
// Security: the file backend refuses to read keys from files with
// permissions other than 0600. If permissions have been widened, the key
// may have been exposed and should be rotated.
package keyring

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the default keyring service identifier.
	// Can be overridden with AUTOBUILD_KEYRING_SERVICE for test isolation.
	ServiceName = "autobuild"
	// AccountName is the keyring account identifier.
	AccountName = "encryption-key"
	// KeySize is the required encryption key size in bytes.
	KeySize = 32
)

// getServiceName returns the keyring service name, checking the
// environment first so tests can use isolated entries.
func getServiceName() string {
	if name := os.Getenv("AUTOBUILD_KEYRING_SERVICE"); name != "" {
		return name
	}
	return ServiceName
}

// encodeKey converts a raw key to base64 for keychain storage.
func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// decodeKey converts a base64-encoded key back to raw bytes.
func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Backend defines the interface for key storage.
type Backend interface {
	Get() ([]byte, error)
	Set(key []byte) error
	Delete() error
	Name() string
}

// keychainBackend stores keys in the system keychain.
type keychainBackend struct{}

func (k *keychainBackend) Get() ([]byte, error) {
	encoded, err := keyring.Get(getServiceName(), AccountName)
	if err != nil {
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return decodeKey(encoded)
}

func (k *keychainBackend) Set(key []byte) error {
	// If another process created a key between our Get() and Set() calls,
	// use that key instead of overwriting it.
	serviceName := getServiceName()
	if _, err := keyring.Get(serviceName, AccountName); err == nil {
		return nil
	}

	encoded := encodeKey(key)
	if err := keyring.Set(serviceName, AccountName, encoded); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

func (k *keychainBackend) Delete() error {
	if err := keyring.Delete(getServiceName(), AccountName); err != nil {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

func (k *keychainBackend) Name() string {
	return "system keychain"
}

// fileBackend stores keys in a file with restricted permissions.
type fileBackend struct {
	path string
}

// ErrInsecurePermissions is returned when the key file has overly permissive permissions.
var ErrInsecurePermissions = errors.New("key file has insecure permissions")

func (f *fileBackend) Get() ([]byte, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	perm := info.Mode().Perm()
	if perm&0077 != 0 {
		return nil, fmt.Errorf("%w: %s has permissions %04o (expected 0600).\n"+
			"  The key may have been exposed. To fix:\n"+
			"  1. chmod 600 %s\n"+
			"  2. Consider storing provider keys again: autobuild auth set-key <provider>",
			ErrInsecurePermissions, f.path, perm, f.path)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	// Trim whitespace to handle trailing newlines from manual editing
	return decodeKey(strings.TrimSpace(string(data)))
}

func (f *fileBackend) Set(key []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	// A lock file serializes concurrent first-time creation. A stale
	// .lock left by a crashed process is harmless and can be deleted
	// manually.
	lockPath := f.path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer lf.Close()
	defer os.Remove(lockPath)

	unlock, err := lockFile(lf)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	defer unlock()

	// Another process may have created the key while we waited for the
	// lock. The caller re-reads the key after this returns.
	if _, err := os.Stat(f.path); err == nil {
		return nil
	}

	encoded := encodeKey(key)
	if err := os.WriteFile(f.path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func (f *fileBackend) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting key file: %w", err)
	}
	return nil
}

func (f *fileBackend) Name() string {
	return "file (" + f.path + ")"
}

// ErrNoHomeDirectory is returned when the home directory cannot be determined.
var ErrNoHomeDirectory = errors.New("could not determine home directory for secure key storage")

// DefaultKeyFilePath returns the default path for the fallback key file.
// The path is always absolute so the key location does not depend on the
// working directory. The service name is included in the filename only
// when AUTOBUILD_KEYRING_SERVICE is set (test isolation). Returns an
// error when the home directory cannot be determined: temp directories
// may be world-readable or cleared on reboot, so they are never used.
func DefaultKeyFilePath() (string, error) {
	filename := "encryption.key"
	if name := os.Getenv("AUTOBUILD_KEYRING_SERVICE"); name != "" {
		filename = name + ".key"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// UserHomeDir failed - try $HOME directly (Unix).
		if envHome := os.Getenv("HOME"); envHome != "" {
			return filepath.Join(envHome, ".autobuild", filename), nil
		}
		return "", fmt.Errorf("%w: set $HOME environment variable or ensure user home is configured", ErrNoHomeDirectory)
	}
	return filepath.Join(home, ".autobuild", filename), nil
}

// generateKey creates a new random encryption key.
func generateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	return key, nil
}

// globalLockPath returns the path for the global key operation lock file,
// which serializes key creation across both backends.
func globalLockPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if envHome := os.Getenv("HOME"); envHome != "" {
			home = envHome
		} else {
			home = os.TempDir()
		}
	}
	return filepath.Join(home, ".autobuild", "key.lock")
}

// withGlobalKeyLock executes fn while holding the global key lock.
func withGlobalKeyLock(fn func() ([]byte, error)) ([]byte, error) {
	lockPath := globalLockPath()

	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating global key lock file: %w", err)
	}
	defer lf.Close()

	unlock, err := lockFile(lf)
	if err != nil {
		return nil, fmt.Errorf("acquiring global key lock: %w", err)
	}
	defer unlock()

	return fn()
}

// getOrCreateKeyWithBackends retrieves or creates an encryption key using the provided backends.
func getOrCreateKeyWithBackends(primary, fallback Backend) ([]byte, error) {
	// 1. Try primary backend (keychain)
	if key, err := primary.Get(); err == nil {
		return key, nil
	}

	// 2. Try fallback backend (file)
	if key, err := fallback.Get(); err == nil {
		return key, nil
	}

	// 3. Generate new key
	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	// 4. Try to store in primary
	primaryErr := primary.Set(key)
	if primaryErr == nil {
		// Re-read so we always return the actually stored key.
		storedKey, getErr := primary.Get()
		if getErr != nil {
			return nil, fmt.Errorf("failed to verify stored encryption key in %s: %w", primary.Name(), getErr)
		}
		return storedKey, nil
	}

	// 5. Fall back to file storage
	slog.Info("system keychain unavailable, using file-based key storage",
		"fallback", fallback.Name())
	if fallbackErr := fallback.Set(key); fallbackErr != nil {
		return nil, fmt.Errorf("storing encryption key failed.\n"+
			"  Keychain (%s): %v\n"+
			"  File (%s): %v\n"+
			"Remediation: Ensure ~/.autobuild directory is writable and check system keychain access settings",
			primary.Name(), primaryErr, fallback.Name(), fallbackErr)
	}

	// Re-read from fallback: another process may have created the key
	// while we waited for the lock, and our generated key may differ from
	// what was stored.
	storedKey, err := fallback.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to verify stored encryption key: %w", err)
	}
	return storedKey, nil
}

// GetOrCreateKey retrieves the encryption key from keychain or file,
// generating a new one if needed. The whole operation holds the global
// key lock.
func GetOrCreateKey() ([]byte, error) {
	return withGlobalKeyLock(func() ([]byte, error) {
		keyFilePath, err := DefaultKeyFilePath()
		if err != nil {
			return nil, err
		}
		primary := &keychainBackend{}
		fallback := &fileBackend{path: keyFilePath}
		return getOrCreateKeyWithBackends(primary, fallback)
	})
}

// DeleteKey removes the encryption key from all storage backends.
func DeleteKey() error {
	keyFilePath, err := DefaultKeyFilePath()
	if err != nil {
		slog.Debug("could not determine key file path for deletion", "error", err)
		keyFilePath = "" // File backend will fail gracefully
	}
	primary := &keychainBackend{}
	fallback := &fileBackend{path: keyFilePath}

	primaryErr := primary.Delete()
	fallbackErr := fallback.Delete()

	if primaryErr != nil && fallbackErr == nil {
		slog.Debug("keychain delete failed (file delete succeeded)", "error", primaryErr)
	}
	if fallbackErr != nil && primaryErr == nil {
		slog.Debug("file delete failed (keychain delete succeeded)", "error", fallbackErr)
	}

	// One backend succeeding is fine
	if primaryErr != nil && fallbackErr != nil {
		return fmt.Errorf("deleting key from all backends: %w",
			errors.Join(
				fmt.Errorf("keychain: %w", primaryErr),
				fmt.Errorf("file: %w", fallbackErr),
			))
	}
	return nil
}
