// Package cli implements the autobuild command-line interface using
// Cobra. It provides the two-phase build pipeline plus commands for
// credentials, diagnostics, and run history.
package cli

import (
	"github.com/majorcontext/autobuild/internal/config"
	"github.com/majorcontext/autobuild/internal/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	jsonOut bool
)

// globalCfg holds user-level settings loaded once per invocation.
var globalCfg = config.DefaultGlobalConfig()

var rootCmd = &cobra.Command{
	Use:   "autobuild",
	Short: "autobuild - two-phase agent build pipeline",
	Long: `Autobuild turns a task description into working code in two agent
phases: a planning session writes an implementation plan, then a fresh
coding session executes it. No review loops, no retries, no state
carried between phases.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		globalCfg, _ = config.LoadGlobal()

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      log.DefaultDebugDir(),
			RetentionDays: globalCfg.Logs.RetentionDays,
		}); err != nil {
			// Log init failure is non-fatal; fall back to the default logger.
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	defer log.Close()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}
