// Package credential resolves the Claude Code credential used to run
// agent sessions, and stores API keys for alternate backends.
package credential

import (
	"time"
)

// Provider identifies a backend whose API key can be stored locally.
type Provider string

const (
	// ProviderZAI is the Z.AI Anthropic-compatible backend that serves
	// GLM-family models.
	ProviderZAI Provider = "zai"
)

// ProviderKey is a stored API key for an alternate backend.
type ProviderKey struct {
	Provider  Provider  `json:"provider"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines provider key storage.
type Store interface {
	Save(k ProviderKey) error
	Get(provider Provider) (*ProviderKey, error)
	Delete(provider Provider) error
	List() ([]ProviderKey, error)
}

// EnvVar returns the environment variable the routing layer reads this
// provider's key from.
func (p Provider) EnvVar() string {
	switch p {
	case ProviderZAI:
		return "ZAI_API_KEY"
	default:
		return ""
	}
}

// KnownProviders returns all providers whose keys can be stored.
func KnownProviders() []Provider {
	return []Provider{ProviderZAI}
}

// IsKnownProvider reports whether p is a known key provider.
func IsKnownProvider(p Provider) bool {
	for _, known := range KnownProviders() {
		if p == known {
			return true
		}
	}
	return false
}
