package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/majorcontext/autobuild/internal/credential"
	"github.com/majorcontext/autobuild/internal/history"
	"github.com/majorcontext/autobuild/internal/router"
	"github.com/majorcontext/autobuild/internal/secrets"
	"github.com/majorcontext/autobuild/internal/spec"
	"github.com/majorcontext/autobuild/internal/ui"
)

// VersionSection shows platform info.
type VersionSection struct{}

func (s *VersionSection) Name() string { return "Version" }

func (s *VersionSection) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Platform:\t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(tw, "Go runtime:\t%s\n", runtime.Version())
	return tw.Flush()
}

// CredentialSection shows which source supplies the Claude Code token.
type CredentialSection struct {
	// Resolver overrides the default chain in tests.
	Resolver *credential.Resolver
}

func (s *CredentialSection) Name() string { return "Claude Code Credential" }

func (s *CredentialSection) Print(w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	source := ""
	if s.Resolver != nil {
		source = s.Resolver.Source(ctx)
	} else {
		source = credential.Source(ctx)
	}

	if source == "" {
		fmt.Fprintf(w, "%s No credential found\n", ui.FailTag())
		fmt.Fprintf(w, "Checked: $%s, $%s", credential.EnvOAuthToken, credential.EnvAuthToken)
		if runtime.GOOS == "darwin" {
			fmt.Fprintf(w, ", keychain entry %q", credential.KeychainService)
		}
		fmt.Fprintln(w)
		return nil
	}

	label := source
	if source != credential.SourceKeychain {
		label = "environment variable $" + source
	}
	fmt.Fprintf(w, "%s Found via %s\n", ui.OKTag(), label)
	return nil
}

// KeysSection lists stored provider API keys (redacted).
type KeysSection struct {
	// Store overrides the default store in tests.
	Store credential.Store
}

func (s *KeysSection) Name() string { return "Provider Keys" }

func (s *KeysSection) Print(w io.Writer) error {
	store := s.Store
	if store == nil {
		fs, err := credential.OpenDefaultStore()
		if err != nil {
			return fmt.Errorf("opening key store: %w", err)
		}
		store = fs
	}

	keys, err := store.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(w, "No provider keys stored")
		fmt.Fprintln(w, "Use 'autobuild auth set-key <provider>' to add one")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%s", k.Provider, maskKey(k.Key))
		if !k.CreatedAt.IsZero() {
			fmt.Fprintf(tw, "\t(added %s)", k.CreatedAt.Format("2006-01-02"))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// maskKey returns a safe-to-display form of an API key.
func maskKey(key string) string {
	if len(key) > 12 {
		return key[:6] + "..."
	}
	if key != "" {
		return "(set)"
	}
	return "(empty)"
}

// RoutingSection shows where requests for the effective model would go.
type RoutingSection struct {
	Model string
	Env   map[string]string
}

func (s *RoutingSection) Name() string { return "Model Routing" }

func (s *RoutingSection) Print(w io.Writer) error {
	routed, warnings := router.Route(s.Model, s.Env)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Model:\t%s\n", s.Model)
	if base := routed[router.EnvBaseURL]; base != "" {
		fmt.Fprintf(tw, "Base URL:\t%s\n", base)
		fmt.Fprintln(tw, "Provider:\tZ.AI (GLM)")
	} else {
		fmt.Fprintln(tw, "Base URL:\tdefault (api.anthropic.com)")
		fmt.Fprintln(tw, "Provider:\tAnthropic")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range warnings {
		fmt.Fprintf(w, "%s %s\n", ui.WarnTag(), warning)
	}
	return nil
}

// SpecSection shows which spec roots exist under the project directory.
type SpecSection struct {
	ProjectDir string
}

func (s *SpecSection) Name() string { return "Spec Directories" }

func (s *SpecSection) Print(w io.Writer) error {
	dir := s.ProjectDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = cwd
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, root := range spec.Roots {
		path := filepath.Join(dir, root)
		entries, err := os.ReadDir(path)
		if err != nil {
			fmt.Fprintf(tw, "%s:\t%s\n", root, ui.Dim("not present"))
			continue
		}
		count := 0
		for _, e := range entries {
			if e.IsDir() {
				count++
			}
		}
		fmt.Fprintf(tw, "%s:\t%d specs\n", root, count)
	}
	return tw.Flush()
}

// HistorySection shows the run history database status.
type HistorySection struct {
	// Path overrides the default location in tests.
	Path string
}

func (s *HistorySection) Name() string { return "Run History" }

func (s *HistorySection) Print(w io.Writer) error {
	path := s.Path
	if path == "" {
		p, err := history.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(w, "No runs recorded yet")
			return nil
		}
		return err
	}

	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	runs, err := store.Recent(20)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Database:\t%s\n", path)
	fmt.Fprintf(tw, "Recent runs:\t%d\n", len(runs))
	fmt.Fprintln(tw, "Use 'autobuild runs' to see run details")
	return tw.Flush()
}

// SecretsSection lists registered secret reference schemes.
type SecretsSection struct{}

func (s *SecretsSection) Name() string { return "Secret Backends" }

func (s *SecretsSection) Print(w io.Writer) error {
	schemes := secrets.Schemes()
	if len(schemes) == 0 {
		fmt.Fprintln(w, "No secret backends registered")
		return nil
	}
	fmt.Fprintf(w, "Registered schemes: %s\n", strings.Join(schemes, ", "))
	fmt.Fprintln(w, "Keys in autobuild.yaml may use <scheme>://<reference> values")
	return nil
}
