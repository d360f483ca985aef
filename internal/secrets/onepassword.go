package secrets

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OnePasswordResolver resolves op:// references through the 1Password
// CLI. Session state stays inside the op tool; autobuild only sees the
// resolved value.
type OnePasswordResolver struct{}

// Scheme returns "op".
func (r *OnePasswordResolver) Scheme() string {
	return "op"
}

// Resolve fetches a secret with `op read`. Values are read fresh on
// every call so rotated items are never served stale.
func (r *OnePasswordResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := exec.LookPath("op"); err != nil {
		return "", &BackendError{
			Backend: "1Password",
			Reason:  "op CLI not found in PATH",
			Fix:     "Install from https://1password.com/downloads/command-line/\nThen run: op signin",
		}
	}

	cmd := exec.CommandContext(ctx, "op", "read", reference)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classifyOpError(stderr.String(), reference)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// classifyOpError maps op CLI stderr output to a typed error. The op
// tool has no machine-readable error output, so this matches on message
// fragments that have been stable across CLI versions.
func classifyOpError(stderr, reference string) error {
	msg := strings.TrimSpace(stderr)

	switch {
	case strings.Contains(msg, "not currently signed in"),
		strings.Contains(msg, "not signed in"):
		return &BackendError{
			Backend:   "1Password",
			Reference: reference,
			Reason:    "not signed in",
			Fix:       "Run: eval $(op signin)\n\nFor CI or other unattended use, set OP_SERVICE_ACCOUNT_TOKEN instead.",
		}

	case strings.Contains(msg, "isn't an item"),
		strings.Contains(msg, "could not be found"):
		return &NotFoundError{Reference: reference, Backend: "1Password"}

	case strings.Contains(msg, "isn't a vault"),
		strings.Contains(msg, "vault") && strings.Contains(msg, "not found"):
		return &BackendError{
			Backend:   "1Password",
			Reference: reference,
			Reason:    "vault not found or not accessible",
			Fix:       fmt.Sprintf("Vault %q not found.\n\nList available vaults with: op vault list", vaultFromRef(reference)),
		}
	}

	return &BackendError{
		Backend:   "1Password",
		Reference: reference,
		Reason:    msg,
	}
}

// vaultFromRef extracts the vault segment of an op://Vault/Item/Field
// reference.
func vaultFromRef(reference string) string {
	rest := strings.TrimPrefix(reference, "op://")
	if vault, _, ok := strings.Cut(rest, "/"); ok && vault != "" {
		return vault
	}
	if rest != "" {
		return rest
	}
	return "unknown"
}

func init() {
	Register(&OnePasswordResolver{})
}
