package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds user-level settings from ~/.autobuild/config.yaml.
// Project configuration (autobuild.yaml) never lives here; the global
// file only carries machine-local knobs.
type GlobalConfig struct {
	Logs    LogsConfig    `yaml:"logs"`
	History HistoryConfig `yaml:"history"`
}

// LogsConfig holds debug log settings.
type LogsConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Disabled bool `yaml:"disabled"`
}

// DefaultGlobalConfig returns the default global configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Logs: LogsConfig{
			RetentionDays: 7,
		},
	}
}

// LoadGlobal reads ~/.autobuild/config.yaml and applies environment
// overrides.
func LoadGlobal() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".autobuild", "config.yaml")
		if data, err := os.ReadFile(configPath); err == nil {
			_ = yaml.Unmarshal(data, cfg) // Ignore unmarshal errors, use defaults
		}
	}

	if days := os.Getenv("AUTOBUILD_LOG_RETENTION_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			cfg.Logs.RetentionDays = n
		}
	}
	if v := os.Getenv("AUTOBUILD_HISTORY_DISABLED"); v == "1" || v == "true" {
		cfg.History.Disabled = true
	}

	return cfg, nil
}

// GlobalConfigDir returns the path to ~/.autobuild.
func GlobalConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".autobuild")
	}
	return filepath.Join(homeDir, ".autobuild")
}
