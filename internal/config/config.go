// Package config handles autobuild.yaml parsing and .env loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional per-project configuration file name.
const ConfigFile = "autobuild.yaml"

// DefaultModel is used when no flag, environment, or config override is
// present.
const DefaultModel = "claude-sonnet-4-20250514"

// EnvModel is the environment override for the base model.
const EnvModel = "AUTO_BUILD_MODEL"

// Phase names accepted under the phases: map.
const (
	PhasePlanning = "planning"
	PhaseCoding   = "coding"
)

// Config represents an autobuild.yaml file.
type Config struct {
	// Model overrides the base model for both phases.
	Model string `yaml:"model,omitempty"`

	// Phases carries per-phase overrides, keyed "planning" / "coding".
	Phases map[string]PhaseConfig `yaml:"phases,omitempty"`

	// Keys maps provider names to secret references resolved at run
	// start (e.g. zai: op://vault/zai/api-key).
	Keys map[string]string `yaml:"keys,omitempty"`
}

// PhaseConfig holds per-phase model settings.
type PhaseConfig struct {
	Model          string `yaml:"model,omitempty"`
	ThinkingBudget int    `yaml:"thinking_budget,omitempty"`
}

// Load reads autobuild.yaml from the given directory.
// Returns nil, nil if the file doesn't exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", ConfigFile, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}

	for name, pc := range cfg.Phases {
		if name != PhasePlanning && name != PhaseCoding {
			return nil, fmt.Errorf("unknown phase %q: must be %q or %q", name, PhasePlanning, PhaseCoding)
		}
		if pc.ThinkingBudget < 0 {
			return nil, fmt.Errorf("phases.%s.thinking_budget must not be negative, got %d", name, pc.ThinkingBudget)
		}
	}

	// Key references must carry a scheme so they are never mistaken for
	// the key material itself.
	for provider, ref := range cfg.Keys {
		if !strings.Contains(ref, "://") {
			return nil, fmt.Errorf("keys.%s has invalid reference %q: missing scheme (expected format: scheme://path, e.g., op://vault/item/field)", provider, ref)
		}
	}

	return &cfg, nil
}

// Phase returns the settings for the named phase, zero when absent.
func (c *Config) Phase(name string) PhaseConfig {
	if c == nil {
		return PhaseConfig{}
	}
	return c.Phases[name]
}

// KeyRef returns the secret reference configured for provider, or "".
func (c *Config) KeyRef(provider string) string {
	if c == nil {
		return ""
	}
	return c.Keys[provider]
}

// ResolveModel applies the model precedence chain: the --model flag,
// then AUTO_BUILD_MODEL, then the config file, then DefaultModel.
func ResolveModel(flag string, cfg *Config) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(EnvModel); v != "" {
		return v
	}
	if cfg != nil && cfg.Model != "" {
		return cfg.Model
	}
	return DefaultModel
}

// LoadDotenv loads KEY=VALUE pairs from <dir>/.env into the process
// environment. Variables already set in the environment always win; a
// missing file is not an error.
func LoadDotenv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking .env: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
