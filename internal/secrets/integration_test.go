//go:build integration

package secrets

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"
)

// These tests hit real backends and only run with -tags integration.
// Each one skips unless the backing CLI is installed and authenticated.

// resolveLive resolves ref against the real backend with a bounded
// timeout and fails the test on error or an empty value.
func resolveLive(t *testing.T, r Resolver, ref string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	val, err := r.Resolve(ctx, ref)
	if err != nil {
		t.Fatalf("resolving %s: %v", ref, err)
	}
	if val == "" {
		t.Errorf("resolved %s to an empty value", ref)
	}
	t.Logf("resolved %s (%d bytes)", ref, len(val))
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func TestOnePasswordResolver_Live(t *testing.T) {
	if _, err := exec.LookPath("op"); err != nil {
		t.Skip("op CLI not installed")
	}
	if err := exec.Command("op", "whoami").Run(); err != nil {
		t.Skip("not signed in to 1Password")
	}

	// Requires a real item. Create one with:
	//   op item create --category=login --title="Autobuild Test" --vault="Private" password=test-secret
	// Override the location with OP_TEST_VAULT / OP_TEST_ITEM / OP_TEST_FIELD.
	ref := "op://" + envOr("OP_TEST_VAULT", "Private") +
		"/" + envOr("OP_TEST_ITEM", "Autobuild Test") +
		"/" + envOr("OP_TEST_FIELD", "password")

	resolveLive(t, &OnePasswordResolver{}, ref)
}

func TestSSMResolver_Live(t *testing.T) {
	if _, err := exec.LookPath("aws"); err != nil {
		t.Skip("aws CLI not installed")
	}
	if err := exec.Command("aws", "sts", "get-caller-identity").Run(); err != nil {
		t.Skip("not authenticated to AWS")
	}

	// Requires a real parameter. Override the path with SSM_TEST_PARAM
	// and the region with SSM_TEST_REGION.
	ref := "ssm://" + os.Getenv("SSM_TEST_REGION") + envOr("SSM_TEST_PARAM", "/myapp/test-secret")

	resolveLive(t, &SSMResolver{}, ref)
}
