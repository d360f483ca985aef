// Package secrets provides pluggable secret resolution from external
// backends. Provider key references in autobuild.yaml (keys:) are
// resolved through this registry before a run starts.
package secrets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Resolver resolves a secret reference to its plaintext value.
type Resolver interface {
	// Scheme returns the URI scheme this resolver handles (e.g., "op", "ssm").
	Scheme() string

	// Resolve fetches the secret value for the given reference.
	// The reference is the full URI (e.g., "op://Dev/OpenAI/api-key").
	Resolve(ctx context.Context, reference string) (string, error)
}

var (
	resolvers = make(map[string]Resolver)
	mu        sync.RWMutex
)

// Register adds a resolver to the registry.
func Register(r Resolver) {
	mu.Lock()
	defer mu.Unlock()
	resolvers[r.Scheme()] = r
}

// Resolve dispatches to the appropriate resolver based on URI scheme.
func Resolve(ctx context.Context, reference string) (string, error) {
	scheme := parseScheme(reference)
	if scheme == "" {
		return "", &InvalidReferenceError{Reference: reference, Reason: "missing scheme"}
	}

	mu.RLock()
	r, ok := resolvers[scheme]
	mu.RUnlock()

	if !ok {
		return "", &UnsupportedSchemeError{Scheme: scheme}
	}

	return r.Resolve(ctx, reference)
}

// ResolveAll resolves a map of name -> reference, failing on the first
// unresolvable entry.
func ResolveAll(ctx context.Context, refs map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(refs))
	for name, ref := range refs {
		value, err := Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		resolved[name] = value
	}
	return resolved, nil
}

// parseScheme extracts the scheme from a URI (e.g., "op" from "op://vault/item").
func parseScheme(ref string) string {
	idx := strings.Index(ref, "://")
	if idx < 1 {
		return ""
	}
	return ref[:idx]
}

// Schemes returns the registered resolver schemes, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()

	schemes := make([]string, 0, len(resolvers))
	for s := range resolvers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

