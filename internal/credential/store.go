package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/majorcontext/autobuild/internal/credential/keyring"
)

// FileStore implements Store using encrypted files.
type FileStore struct {
	dir    string
	cipher cipher.AEAD
}

// NewFileStore creates a file-based provider key store.
// key must be 32 bytes for AES-256.
func NewFileStore(dir string, key []byte) (*FileStore, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating credential dir: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &FileStore{dir: dir, cipher: gcm}, nil
}

func (s *FileStore) path(provider Provider) string {
	return filepath.Join(s.dir, string(provider)+".enc")
}

// Save stores a provider key encrypted on disk.
func (s *FileStore) Save(k ProviderKey) error {
	data, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("marshaling provider key: %w", err)
	}

	nonce := make([]byte, s.cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	encrypted := s.cipher.Seal(nonce, nonce, data, nil)
	if err := os.WriteFile(s.path(k.Provider), encrypted, 0600); err != nil {
		return fmt.Errorf("writing provider key file: %w", err)
	}

	return nil
}

// Get retrieves the stored key for the given provider.
func (s *FileStore) Get(provider Provider) (*ProviderKey, error) {
	encrypted, err := os.ReadFile(s.path(provider))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no stored key for %s", provider)
		}
		return nil, fmt.Errorf("reading provider key file: %w", err)
	}

	nonceSize := s.cipher.NonceSize()
	if len(encrypted) < nonceSize {
		return nil, fmt.Errorf("invalid provider key file")
	}

	nonce, ciphertext := encrypted[:nonceSize], encrypted[nonceSize:]
	data, err := s.cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting key for %s: %w\n"+
			"  This may indicate the encryption key has changed.\n"+
			"  To store the key again: autobuild auth set-key %s", provider, err, provider)
	}

	var k ProviderKey
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("unmarshaling provider key: %w", err)
	}

	return &k, nil
}

// Delete removes the stored key for the given provider.
func (s *FileStore) Delete(provider Provider) error {
	if err := os.Remove(s.path(provider)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting provider key: %w", err)
	}
	return nil
}

// List returns all stored provider keys.
func (s *FileStore) List() ([]ProviderKey, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading credential dir: %w", err)
	}

	keys := make([]ProviderKey, 0, len(entries))
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".enc" {
			continue
		}
		provider := Provider(entry.Name()[:len(entry.Name())-4])
		k, err := s.Get(provider)
		if err != nil {
			continue // Skip unreadable keys
		}
		keys = append(keys, *k)
	}

	return keys, nil
}

// DefaultStoreDir returns the default provider key store directory.
func DefaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home is unavailable
		return filepath.Join(".", ".autobuild", "credentials")
	}
	return filepath.Join(home, ".autobuild", "credentials")
}

// DefaultEncryptionKey retrieves the encryption key from secure storage.
// Uses the system keychain when available, falls back to file-based
// storage.
func DefaultEncryptionKey() ([]byte, error) {
	return keyring.GetOrCreateKey()
}

// OpenDefaultStore opens the store at the default location with the
// default encryption key.
func OpenDefaultStore() (*FileStore, error) {
	key, err := DefaultEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("loading encryption key: %w", err)
	}
	return NewFileStore(DefaultStoreDir(), key)
}
