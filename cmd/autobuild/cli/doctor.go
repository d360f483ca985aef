package cli

import (
	"fmt"
	"os"

	"github.com/majorcontext/autobuild/internal/config"
	"github.com/majorcontext/autobuild/internal/doctor"
	"github.com/majorcontext/autobuild/internal/ui"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnostic information about the autobuild environment",
	Long: `Displays diagnostic information about the autobuild environment for
debugging.

This command shows:
- Platform info
- Claude Code credential source
- Stored provider keys
- Routing for the effective model
- Spec directories in the current project
- Run history status
- Registered secret backends

All sensitive information (tokens, keys) is redacted.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println(ui.Bold("Autobuild Doctor"))
	fmt.Println()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		ui.Warnf("loading %s: %v", config.ConfigFile, err)
		cfg = nil
	}
	model := config.ResolveModel("", cfg)

	reg := doctor.NewRegistry(
		&doctor.VersionSection{},
		&doctor.CredentialSection{},
		&doctor.KeysSection{},
		&doctor.RoutingSection{Model: model, Env: pipelineEnv(cmd.Context(), cfg)},
		&doctor.SpecSection{ProjectDir: cwd},
		&doctor.HistorySection{},
		&doctor.SecretsSection{},
	)

	for _, section := range reg.Sections() {
		ui.Section(section.Name())
		if err := section.Print(os.Stdout); err != nil {
			fmt.Printf("%s Error: %v\n", ui.FailTag(), err)
		}
		fmt.Println()
	}
	return nil
}
