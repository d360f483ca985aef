package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/majorcontext/autobuild/internal/credential"
	"github.com/majorcontext/autobuild/internal/ui"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect credentials and manage provider API keys",
	Long: `Inspect the Claude Code credential and manage stored API keys for
alternate providers.

The Claude Code credential itself is never stored by autobuild: it is
resolved fresh on every run from the environment or the macOS Keychain.
Provider keys (for GLM models served by Z.AI) are stored encrypted under
~/.autobuild/credentials.`,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which source supplies the Claude Code credential",
	RunE:  runAuthStatus,
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider>",
	Short: "Store an API key for an alternate provider",
	Long: `Store an API key for an alternate provider, encrypted at rest.

The key is read from an interactive prompt, never from arguments, so it
does not land in shell history.

Examples:
  autobuild auth set-key zai`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSetKey,
}

var authRemoveKeyCmd = &cobra.Command{
	Use:   "remove-key <provider>",
	Short: "Delete a stored provider API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemoveKey,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authSetKeyCmd)
	authCmd.AddCommand(authRemoveKeyCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	source := credential.Source(ctx)
	if source == "" {
		ui.Status("error", "No Claude Code credential found")
		fmt.Println("Run 'claude setup-token' to authenticate.")
	} else if source == credential.SourceKeychain {
		ui.Status("success", "Claude Code credential: "+source)
	} else {
		ui.Status("success", "Claude Code credential: $"+source)
	}

	store, err := credential.OpenDefaultStore()
	if err != nil {
		return fmt.Errorf("opening key store: %w", err)
	}
	keys, err := store.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No provider keys stored.")
		return nil
	}
	for _, k := range keys {
		ui.Status("info", fmt.Sprintf("Provider key: %s (routes via $%s)", k.Provider, k.Provider.EnvVar()))
	}
	return nil
}

func runAuthSetKey(cmd *cobra.Command, args []string) error {
	provider := credential.Provider(args[0])
	if !credential.IsKnownProvider(provider) {
		return fmt.Errorf("unknown provider %q (known: %s)", args[0], knownProviderNames())
	}

	key, err := credential.PromptForKey(fmt.Sprintf("Enter %s API key: ", provider))
	if err != nil {
		return err
	}
	if key == "" {
		return errors.New("no key entered")
	}

	store, err := credential.OpenDefaultStore()
	if err != nil {
		return fmt.Errorf("opening key store: %w", err)
	}
	if err := store.Save(credential.ProviderKey{
		Provider:  provider,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	ui.Status("success", fmt.Sprintf("Stored %s API key", provider))
	fmt.Println(ui.Dim(fmt.Sprintf("A $%s environment variable still wins over the stored key.", provider.EnvVar())))
	return nil
}

func runAuthRemoveKey(cmd *cobra.Command, args []string) error {
	provider := credential.Provider(args[0])
	if !credential.IsKnownProvider(provider) {
		return fmt.Errorf("unknown provider %q (known: %s)", args[0], knownProviderNames())
	}

	store, err := credential.OpenDefaultStore()
	if err != nil {
		return fmt.Errorf("opening key store: %w", err)
	}
	if err := store.Delete(provider); err != nil {
		return err
	}
	ui.Status("success", fmt.Sprintf("Removed %s API key", provider))
	return nil
}

func knownProviderNames() string {
	names := make([]string, 0, len(credential.KnownProviders()))
	for _, p := range credential.KnownProviders() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
