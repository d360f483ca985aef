package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "auth", "doctor", "runs", "version"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestAuthSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range authCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"status", "set-key", "remove-key"} {
		assert.True(t, names[want], "auth subcommand %q not registered", want)
	}
}
