package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/majorcontext/autobuild/internal/log"
)

const (
	// EnvOAuthToken is the long-lived OAuth token Claude Code issues via
	// 'claude setup-token'. Checked first.
	EnvOAuthToken = "CLAUDE_CODE_OAUTH_TOKEN"

	// EnvAuthToken is the bearer token used by proxies and enterprise
	// gateways. Checked second.
	EnvAuthToken = "ANTHROPIC_AUTH_TOKEN"

	// EnvAPIKey is Anthropic's metered API key variable. It is never part
	// of the search chain: an unattended run must not silently fall back
	// to billing a personal API account when agent credentials are
	// missing. Do not "fix" this by adding it to envChain.
	EnvAPIKey = "ANTHROPIC_API_KEY"

	// SourceKeychain tags credentials read from the macOS Keychain.
	SourceKeychain = "macOS Keychain"
)

// envChain lists the environment variables consulted, in priority order.
// EnvAPIKey is excluded on purpose; see its doc comment.
var envChain = []string{EnvOAuthToken, EnvAuthToken}

// Credential is a resolved bearer token tagged with the source that
// produced it. It is never persisted; resolution happens per call so
// rotated secrets are picked up on the next run.
type Credential struct {
	Token  string
	Source string
}

// ErrNoCredential indicates that no source in the chain produced a token.
var ErrNoCredential = errors.New("no Claude Code credential found")

// AuthError is the fatal form of ErrNoCredential, carrying remediation
// steps for the current platform. Callers abort the pipeline on it.
type AuthError struct {
	Remediation string
}

func (e *AuthError) Error() string {
	return "no Claude Code credential found\n" + e.Remediation
}

func (e *AuthError) Unwrap() error { return ErrNoCredential }

// Resolver finds a Claude Code credential using a fixed source chain:
// environment variables first, then the macOS Keychain entry written by
// Claude Code. The zero value reads the process environment and the real
// keychain.
type Resolver struct {
	// Getenv supplies environment lookups. Defaults to os.Getenv.
	Getenv func(string) string

	// goos and probe are overridable in tests.
	goos  string
	probe func(context.Context) keychainResult
}

func (r *Resolver) getenv(name string) string {
	if r.Getenv != nil {
		return r.Getenv(name)
	}
	return os.Getenv(name)
}

func (r *Resolver) platform() string {
	if r.goos != "" {
		return r.goos
	}
	return runtime.GOOS
}

// Resolve returns the first credential found in the chain, or
// ErrNoCredential. Keychain failures of any kind (non-macOS host,
// command error, timeout, malformed entry, wrong token format) degrade
// silently to not-found; the keychain is a best-effort fallback, never a
// required source.
func (r *Resolver) Resolve(ctx context.Context) (*Credential, error) {
	for _, name := range envChain {
		if v := r.getenv(name); v != "" {
			return &Credential{Token: v, Source: name}, nil
		}
	}

	if r.platform() != "darwin" {
		return nil, ErrNoCredential
	}

	probe := r.probe
	if probe == nil {
		probe = queryKeychain
	}
	res := probe(ctx)
	if res.err != nil {
		log.Debug("keychain probe failed", "error", res.err)
	}
	if !res.found {
		return nil, ErrNoCredential
	}
	return &Credential{Token: res.token, Source: SourceKeychain}, nil
}

// Require resolves a credential or fails with an AuthError carrying
// platform-specific remediation. This is the fatal path: callers must
// abort, not retry.
func (r *Resolver) Require(ctx context.Context) (*Credential, error) {
	cred, err := r.Resolve(ctx)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			return nil, &AuthError{Remediation: remediation(r.platform())}
		}
		return nil, err
	}
	return cred, nil
}

// Source reports which source would supply the token, or "" when
// resolution fails.
func (r *Resolver) Source(ctx context.Context) string {
	cred, err := r.Resolve(ctx)
	if err != nil {
		return ""
	}
	return cred.Source
}

// EnsureSDKToken resolves a credential and exports it into the process
// environment under EnvOAuthToken when that variable is unset, so the
// execution client always sees the same variable regardless of which
// source won.
func (r *Resolver) EnsureSDKToken(ctx context.Context) (*Credential, error) {
	cred, err := r.Require(ctx)
	if err != nil {
		return nil, err
	}
	if os.Getenv(EnvOAuthToken) == "" {
		if err := os.Setenv(EnvOAuthToken, cred.Token); err != nil {
			return nil, fmt.Errorf("exporting %s: %w", EnvOAuthToken, err)
		}
	}
	return cred, nil
}

func remediation(goos string) string {
	if goos == "darwin" {
		return "  Run 'claude setup-token' to authenticate.\n" +
			"  The token is saved to the macOS Keychain and picked up automatically."
	}
	return "  Run 'claude setup-token' to generate a token, then either:\n" +
		"    export " + EnvOAuthToken + "=<token>\n" +
		"  or add " + EnvOAuthToken + " to a .env file in the project root."
}

var defaultResolver = &Resolver{}

// Resolve finds a credential using the default resolver.
func Resolve(ctx context.Context) (*Credential, error) {
	return defaultResolver.Resolve(ctx)
}

// Require finds a credential using the default resolver, failing with an
// AuthError when none exists.
func Require(ctx context.Context) (*Credential, error) {
	return defaultResolver.Require(ctx)
}

// EnsureSDKToken resolves and exports the credential using the default
// resolver.
func EnsureSDKToken(ctx context.Context) (*Credential, error) {
	return defaultResolver.EnsureSDKToken(ctx)
}

// Source reports the default resolver's winning source, or "".
func Source(ctx context.Context) string {
	return defaultResolver.Source(ctx)
}
