// Package router decides the provider configuration handed to the
// execution client for a given model: base URL, auth token, and request
// timeout. Routing is a pure function of the model id and an environment
// snapshot; it performs no I/O and never reads the process environment
// itself.
package router

import (
	"fmt"
	"strings"
)

// Configuration keys passed through to the execution client.
const (
	EnvBaseURL             = "ANTHROPIC_BASE_URL"
	EnvAuthToken           = "ANTHROPIC_AUTH_TOKEN"
	EnvNoProxy             = "NO_PROXY"
	EnvDisableTelemetry    = "DISABLE_TELEMETRY"
	EnvDisableCostWarnings = "DISABLE_COST_WARNINGS"
	EnvTimeoutMS           = "API_TIMEOUT_MS"
)

// SDKEnvVars is the fixed set of configuration keys the client consumes,
// in pass-through order. Values already present in the caller's
// environment snapshot are copied first and never overwritten.
var SDKEnvVars = []string{
	EnvBaseURL,
	EnvAuthToken,
	EnvNoProxy,
	EnvDisableTelemetry,
	EnvDisableCostWarnings,
	EnvTimeoutMS,
}

// Z.AI serves GLM-family models over an Anthropic-compatible API.
const (
	// ZAIBaseURL is the Z.AI endpoint.
	ZAIBaseURL = "https://api.z.ai/api/anthropic"

	// ZAITimeoutMS is the request timeout for Z.AI calls, in
	// milliseconds. GLM models stream long plans slowly; 50 minutes.
	ZAITimeoutMS = "3000000"

	// ZAIKeyEnv names the variable holding the Z.AI API key.
	ZAIKeyEnv = "ZAI_API_KEY"

	// routedHostFragment marks a base URL as already pointing at Z.AI.
	// Intentionally a loose case-insensitive substring match.
	routedHostFragment = "z.ai"
)

// Warning is a non-fatal routing problem. Route returns warnings as
// values; the caller decides how to surface them.
type Warning string

func (w Warning) String() string { return string(w) }

// IsGLMModel reports whether the model id belongs to the GLM family.
func IsGLMModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "glm")
}

// Route computes the provider configuration for model from the given
// environment snapshot. The merge runs in two passes: first every
// SDKEnvVars key present and non-empty in env is copied through, then
// model-inferred values fill only the keys the caller left unset.
// Caller-supplied values always win.
//
// If the base URL already names the Z.AI host, routing is considered
// done: only the timeout default is filled in. Otherwise, GLM-family
// models are pointed at Z.AI, and the Z.AI API key (when present in env)
// becomes the auth token. A missing key yields a Warning, not an error;
// the configuration stays usable and any auth failure surfaces later at
// the transport layer.
func Route(model string, env map[string]string) (map[string]string, []Warning) {
	out := make(map[string]string, len(SDKEnvVars))

	for _, key := range SDKEnvVars {
		if v := env[key]; v != "" {
			out[key] = v
		}
	}

	if strings.Contains(strings.ToLower(out[EnvBaseURL]), routedHostFragment) {
		if out[EnvTimeoutMS] == "" {
			out[EnvTimeoutMS] = ZAITimeoutMS
		}
		return out, nil
	}

	if !IsGLMModel(model) {
		return out, nil
	}

	var warnings []Warning
	if out[EnvBaseURL] == "" {
		out[EnvBaseURL] = ZAIBaseURL
	}
	if out[EnvTimeoutMS] == "" {
		out[EnvTimeoutMS] = ZAITimeoutMS
	}
	if out[EnvAuthToken] == "" {
		if key := env[ZAIKeyEnv]; key != "" {
			out[EnvAuthToken] = key
		} else {
			warnings = append(warnings, Warning(fmt.Sprintf(
				"%s is not set; GLM requests to %s will fail authentication", ZAIKeyEnv, ZAIBaseURL)))
		}
	}
	return out, warnings
}
