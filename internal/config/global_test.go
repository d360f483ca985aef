package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGlobalConfig(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".autobuild")
	os.MkdirAll(configDir, 0755)

	content := `
logs:
  retention_days: 30
history:
  disabled: true
`
	os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Logs.RetentionDays != 30 {
		t.Errorf("Logs.RetentionDays = %d, want 30", cfg.Logs.RetentionDays)
	}
	if !cfg.History.Disabled {
		t.Error("History.Disabled = false, want true")
	}
}

func TestLoadGlobalConfigDefaults(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Logs.RetentionDays != 7 {
		t.Errorf("Logs.RetentionDays = %d, want default 7", cfg.Logs.RetentionDays)
	}
	if cfg.History.Disabled {
		t.Error("History.Disabled should default to false")
	}
}

func TestLoadGlobalConfigEnvOverrides(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("AUTOBUILD_LOG_RETENTION_DAYS", "2")
	t.Setenv("AUTOBUILD_HISTORY_DISABLED", "1")

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Logs.RetentionDays != 2 {
		t.Errorf("Logs.RetentionDays = %d, want 2", cfg.Logs.RetentionDays)
	}
	if !cfg.History.Disabled {
		t.Error("History.Disabled = false, want true")
	}
}

func TestGlobalConfigDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir := GlobalConfigDir()
	if dir != filepath.Join(tmpHome, ".autobuild") {
		t.Errorf("GlobalConfigDir() = %q, want %q", dir, filepath.Join(tmpHome, ".autobuild"))
	}
}
