// Package id provides unique identifier generation for autobuild runs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Generate creates a unique identifier with the given prefix.
// Format: <prefix>_<12 hex chars> (e.g., "run_abc123def456").
// Uses 6 cryptographically random bytes encoded as 12 hex characters.
func Generate(prefix string) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails (extremely unlikely)
		return prefix + "_" + hex.EncodeToString([]byte(time.Now().Format("150405.00000")))[:12]
	}
	return prefix + "_" + hex.EncodeToString(b)
}
