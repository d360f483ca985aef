package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// KeychainService is the macOS Keychain entry Claude Code writes its
	// OAuth credentials to.
	KeychainService = "Claude Code-credentials"

	// OAuthTokenPrefix is required on tokens read from the keychain.
	// Entries without it belong to some other credential format and are
	// discarded rather than reported as malformed.
	OAuthTokenPrefix = "sk-ant-oat01-"

	keychainTimeout = 5 * time.Second
)

// OAuthCredentials mirrors the JSON payload stored under the keychain
// entry.
type OAuthCredentials struct {
	ClaudeAiOauth *OAuthToken `json:"claudeAiOauth,omitempty"`
}

// OAuthToken is an individual OAuth token issued to Claude Code.
type OAuthToken struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"` // Unix milliseconds
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
}

// ExpiresAtTime returns the expiration time as a time.Time.
func (t *OAuthToken) ExpiresAtTime() time.Time {
	return time.UnixMilli(t.ExpiresAt)
}

// IsExpired returns true if the token has expired.
func (t *OAuthToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAtTime())
}

// keychainResult is the typed outcome of a keychain probe. Failures keep
// their cause for debug logging, but the resolver collapses everything
// short of found to not-found.
type keychainResult struct {
	token string
	found bool
	err   error
}

// queryKeychain runs the security tool against the Claude Code entry and
// extracts the access token. The subprocess is bounded by a 5-second
// timeout so a locked keychain prompt cannot hang resolution.
func queryKeychain(ctx context.Context) keychainResult {
	ctx, cancel := context.WithTimeout(ctx, keychainTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "security", "find-generic-password",
		"-s", KeychainService,
		"-w", // Output only the password
	)
	output, err := cmd.Output()
	if err != nil {
		return keychainResult{err: fmt.Errorf("keychain lookup: %w", err)}
	}

	token, err := parseKeychainPayload(output)
	if err != nil {
		return keychainResult{err: err}
	}
	return keychainResult{token: token, found: true}
}

// parseKeychainPayload decodes the keychain entry and validates the token
// format.
func parseKeychainPayload(payload []byte) (string, error) {
	var creds OAuthCredentials
	if err := json.Unmarshal(bytes.TrimSpace(payload), &creds); err != nil {
		return "", fmt.Errorf("parsing keychain credentials: %w", err)
	}
	if creds.ClaudeAiOauth == nil || creds.ClaudeAiOauth.AccessToken == "" {
		return "", fmt.Errorf("no OAuth token in keychain entry")
	}
	token := creds.ClaudeAiOauth.AccessToken
	if !strings.HasPrefix(token, OAuthTokenPrefix) {
		return "", fmt.Errorf("keychain token does not have the %s prefix", OAuthTokenPrefix)
	}
	return token, nil
}
