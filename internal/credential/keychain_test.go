package credential

import (
	"strings"
	"testing"
	"time"
)

func TestParseKeychainPayload(t *testing.T) {
	payload := []byte(`{
		"claudeAiOauth": {
			"accessToken": "sk-ant-oat01-abc123",
			"refreshToken": "sk-ant-ort01-refresh",
			"expiresAt": 1768957840059,
			"scopes": ["user:inference", "user:profile"]
		}
	}`)

	token, err := parseKeychainPayload(payload)
	if err != nil {
		t.Fatalf("parseKeychainPayload: %v", err)
	}
	if token != "sk-ant-oat01-abc123" {
		t.Errorf("token = %q, want %q", token, "sk-ant-oat01-abc123")
	}
}

func TestParseKeychainPayload_TrailingNewline(t *testing.T) {
	payload := []byte(`{"claudeAiOauth": {"accessToken": "sk-ant-oat01-abc"}}` + "\n")

	token, err := parseKeychainPayload(payload)
	if err != nil {
		t.Fatalf("parseKeychainPayload: %v", err)
	}
	if token != "sk-ant-oat01-abc" {
		t.Errorf("token = %q", token)
	}
}

func TestParseKeychainPayload_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "hunter2"},
		{"empty object", "{}"},
		{"empty token", `{"claudeAiOauth": {"accessToken": ""}}`},
		{"wrong prefix", `{"claudeAiOauth": {"accessToken": "sk-ant-api03-personal-key"}}`},
		{"foreign entry", `{"someOtherApp": {"accessToken": "sk-ant-oat01-x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseKeychainPayload([]byte(tt.payload))
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseKeychainPayload_PrefixRequired(t *testing.T) {
	// A structurally valid entry with the wrong token format is treated
	// the same as an absent one at the resolver boundary, so a foreign
	// credential can never leak into a run.
	payload := []byte(`{"claudeAiOauth": {"accessToken": "some-random-secret"}}`)
	_, err := parseKeychainPayload(payload)
	if err == nil {
		t.Fatal("expected error for token without the OAuth prefix")
	}
	if !strings.Contains(err.Error(), OAuthTokenPrefix) {
		t.Errorf("error should name the expected prefix, got: %v", err)
	}
}

func TestOAuthToken_ExpiresAtTime(t *testing.T) {
	token := &OAuthToken{ExpiresAt: 1768957840059} // Jan 2026
	got := token.ExpiresAtTime()
	if got.IsZero() {
		t.Error("ExpiresAtTime() returned zero time")
	}
	if got.Year() != 2026 {
		t.Errorf("ExpiresAtTime().Year() = %d, want 2026", got.Year())
	}
}

func TestOAuthToken_IsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"expired token", time.Now().Add(-1 * time.Hour).UnixMilli(), true},
		{"valid token", time.Now().Add(1 * time.Hour).UnixMilli(), false},
		{"zero expiration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &OAuthToken{ExpiresAt: tt.expiresAt}
			if got := token.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}
