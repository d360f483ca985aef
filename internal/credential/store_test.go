package credential

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileStore_SaveAndGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	k := ProviderKey{
		Provider:  ProviderZAI,
		Key:       "zai-key-123",
		CreatedAt: time.Now(),
	}

	if err := store.Save(k); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ProviderZAI)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Key != k.Key {
		t.Errorf("Key = %q, want %q", got.Key, k.Key)
	}
}

func TestFileStore_Delete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	store.Save(ProviderKey{
		Provider:  ProviderZAI,
		Key:       "zai-key-123",
		CreatedAt: time.Now(),
	})
	if err := store.Delete(ProviderZAI); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err = store.Get(ProviderZAI)
	if err == nil {
		t.Error("expected error after delete, got nil")
	}
}

func TestFileStore_GetNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	_, err = store.Get(ProviderZAI)
	if err == nil {
		t.Error("expected error for non-existent key")
	}
}

func TestFileStore_List(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// Initially empty
	keys, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() = %d keys, want 0", len(keys))
	}

	store.Save(ProviderKey{
		Provider:  ProviderZAI,
		Key:       "zai-key-123",
		CreatedAt: time.Now(),
	})
	store.Save(ProviderKey{
		Provider:  Provider("other"),
		Key:       "other-key-456",
		CreatedAt: time.Now(),
	})

	keys, err = store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("List() = %d keys, want 2", len(keys))
	}
}

func TestNewFileStore_InvalidKeyLength(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileStore(dir, []byte("short-key"))
	if err == nil {
		t.Error("expected error for invalid key length")
	}
}

func TestFileStore_WrongKeyCannotDecrypt(t *testing.T) {
	dir := t.TempDir()
	key1 := []byte("test-encryption-key-32-bytes!!ab")
	key2 := []byte("different-encrypt-key-32-bytes!!")

	store1, err := NewFileStore(dir, key1)
	if err != nil {
		t.Fatalf("NewFileStore (key1): %v", err)
	}
	store1.Save(ProviderKey{
		Provider:  ProviderZAI,
		Key:       "secret-key",
		CreatedAt: time.Now(),
	})

	store2, err := NewFileStore(dir, key2)
	if err != nil {
		t.Fatalf("NewFileStore (key2): %v", err)
	}
	_, err = store2.Get(ProviderZAI)
	if err == nil {
		t.Error("expected decryption error with wrong key, got nil")
	}
	if !strings.Contains(err.Error(), "decrypting") {
		t.Errorf("error should mention decryption, got: %v", err)
	}
}

func TestDefaultStoreDir(t *testing.T) {
	dir := DefaultStoreDir()
	if !strings.HasSuffix(dir, filepath.Join(".autobuild", "credentials")) {
		t.Errorf("DefaultStoreDir() = %q, want suffix %q", dir, filepath.Join(".autobuild", "credentials"))
	}
}

func TestProviderEnvVar(t *testing.T) {
	if got := ProviderZAI.EnvVar(); got != "ZAI_API_KEY" {
		t.Errorf("ProviderZAI.EnvVar() = %q, want ZAI_API_KEY", got)
	}
	if got := Provider("unknown").EnvVar(); got != "" {
		t.Errorf("unknown EnvVar() = %q, want empty", got)
	}
}

func TestIsKnownProvider(t *testing.T) {
	if !IsKnownProvider(ProviderZAI) {
		t.Error("ProviderZAI should be known")
	}
	if IsKnownProvider(Provider("github")) {
		t.Error("github should not be a key provider")
	}
}
