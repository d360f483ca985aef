package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/majorcontext/autobuild/internal/agent"
	"github.com/majorcontext/autobuild/internal/build"
	"github.com/majorcontext/autobuild/internal/config"
	"github.com/majorcontext/autobuild/internal/credential"
	"github.com/majorcontext/autobuild/internal/gitinfo"
	"github.com/majorcontext/autobuild/internal/history"
	"github.com/majorcontext/autobuild/internal/id"
	"github.com/majorcontext/autobuild/internal/log"
	"github.com/majorcontext/autobuild/internal/router"
	"github.com/majorcontext/autobuild/internal/secrets"
	"github.com/majorcontext/autobuild/internal/spec"
	"github.com/majorcontext/autobuild/internal/ui"
	"github.com/spf13/cobra"
)

var (
	specFlag    string
	taskFlag    string
	projectFlag string
	modelFlag   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the two-phase build pipeline",
	Long: `Run the build pipeline: a planning agent writes quick_plan.md,
then a fresh coding agent executes it. Each phase gets its own session;
no conversational state carries over.

The task comes from --task, or from the spec directory's spec.md
("## Task" section, falling back to the file head). With --task and no
--spec, a quick-<timestamp> spec directory is created to hold the plan.

Examples:
  # Run against a spec directory
  autobuild run --spec 001-add-login

  # Run an inline task from the current directory
  autobuild run --task "Add a logout button to the navbar"

  # Override the base model for this run
  autobuild run --spec 001 --model claude-opus-4-20250514

  # Build a different project
  autobuild run --task "Fix the flaky cache test" --project ~/src/api`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&specFlag, "spec", "", "spec ID (e.g. '001' or '001-feature-name')")
	runCmd.Flags().StringVar(&taskFlag, "task", "", "inline task description (wins over spec.md)")
	runCmd.Flags().StringVar(&projectFlag, "project", ".", "project directory to build in")
	runCmd.Flags().StringVar(&modelFlag, "model", "", "base model (default: $"+config.EnvModel+" or "+config.DefaultModel+")")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if specFlag == "" && taskFlag == "" {
		return errors.New("either --spec or --task is required")
	}

	projectDir, err := filepath.Abs(projectFlag)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(projectDir); statErr != nil || !info.IsDir() {
		return fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	if err := config.LoadDotenv(projectDir); err != nil {
		log.Debug("loading .env", "error", err)
	}
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}
	model := config.ResolveModel(modelFlag, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cred, err := credential.EnsureSDKToken(ctx)
	if err != nil {
		return err
	}
	log.Debug("credential resolved", "source", cred.Source)

	specID := specFlag
	if specID == "" {
		specID = spec.QuickID()
	}
	specDir, created, err := spec.Dir(projectDir, specID)
	if err != nil {
		return err
	}
	if created {
		ui.Status("info", "Created spec directory: "+specDir)
	}

	task, err := spec.Task(specDir, taskFlag)
	if err != nil {
		return err
	}

	branch := gitinfo.Branch(projectDir)
	env := pipelineEnv(ctx, cfg)

	printRunHeader(projectDir, filepath.Base(specDir), model, branch)

	runID := id.Generate("run")
	log.SetRunID(runID)

	sinks := build.MultiSink{build.NewFileSink(projectDir)}
	var store *history.Store
	if !globalCfg.History.Disabled {
		s, openErr := history.OpenDefault()
		if openErr != nil {
			log.Warn("run history unavailable", "error", openErr)
		} else {
			store = s
			defer store.Close()
			startErr := store.StartRun(history.Run{
				ID:      runID,
				Project: projectDir,
				Spec:    filepath.Base(specDir),
				Model:   model,
			})
			if startErr != nil {
				log.Warn("recording run", "error", startErr)
			} else {
				sinks = append(sinks, build.NewHistorySink(store, runID))
			}
		}
	}

	orch := &build.Orchestrator{
		Runner: agent.NewClient(),
		Status: sinks,
		Config: cfg,
	}
	runErr := orch.Run(ctx, build.RunOptions{
		ProjectDir: projectDir,
		SpecDir:    specDir,
		Model:      model,
		Task:       task,
		Branch:     branch,
		Env:        env,
	})

	switch {
	case runErr == nil:
		finishRun(store, runID, string(build.StateComplete), "")
		printRunFooter()
		return nil

	case errors.Is(runErr, build.ErrInterrupted):
		// The run and current phase records stay open; an interrupt is
		// not a failure.
		fmt.Println()
		ui.Warn("Build interrupted by user")
		cmd.SilenceErrors = true
		return runErr

	default:
		finishRun(store, runID, string(build.StateError), runErr.Error())
		var phaseErr *build.PhaseError
		if errors.As(runErr, &phaseErr) {
			fmt.Println()
			ui.Status("error", "Build failed in "+phaseErr.Phase+" phase")
			cmd.SilenceErrors = true
		}
		return runErr
	}
}

func printRunHeader(projectDir, specName, model, branch string) {
	rule := strings.Repeat("=", 70)
	fmt.Println()
	fmt.Println(ui.Bold("Autobuild"))
	fmt.Println(ui.Dim("Plan, then implement. Fresh agent context per phase."))
	fmt.Println()
	fmt.Println(rule)
	fmt.Println("  AUTOBUILD RUN")
	fmt.Println(rule)
	fmt.Println()
	fmt.Printf("Project: %s\n", projectDir)
	fmt.Printf("Spec: %s\n", specName)
	fmt.Printf("Model: %s\n", model)
	if branch != "" {
		fmt.Printf("Branch: %s\n", branch)
	}
	fmt.Println()
}

func printRunFooter() {
	rule := strings.Repeat("=", 70)
	fmt.Println()
	fmt.Println(rule)
	fmt.Println("  ✅ BUILD COMPLETE")
	fmt.Println(rule)
	fmt.Println()
	fmt.Println(ui.Green("Task completed successfully!"))
	fmt.Println()
}

func finishRun(store *history.Store, runID, state, errText string) {
	if store == nil {
		return
	}
	if err := store.FinishRun(runID, state, errText); err != nil {
		log.Debug("finishing run record", "run", runID, "error", err)
	}
}

// pipelineEnv materializes the provider environment snapshot the router
// consumes: SDK pass-through variables from the process environment,
// plus the Z.AI key from (in order) the environment, the local key
// store, or a secret reference in project config.
func pipelineEnv(ctx context.Context, cfg *config.Config) map[string]string {
	env := make(map[string]string)
	for _, key := range router.SDKEnvVars {
		if v := os.Getenv(key); v != "" {
			env[key] = v
		}
	}
	if v := os.Getenv(router.ZAIKeyEnv); v != "" {
		env[router.ZAIKeyEnv] = v
	} else if key := storedZAIKey(ctx, cfg); key != "" {
		env[router.ZAIKeyEnv] = key
	}
	return env
}

func storedZAIKey(ctx context.Context, cfg *config.Config) string {
	if store, err := credential.OpenDefaultStore(); err == nil {
		if k, err := store.Get(credential.ProviderZAI); err == nil && k.Key != "" {
			return k.Key
		}
	}

	if cfg == nil {
		return ""
	}
	ref := cfg.KeyRef(string(credential.ProviderZAI))
	if ref == "" {
		return ""
	}
	v, err := secrets.Resolve(ctx, ref)
	if err != nil {
		ui.Warnf("resolving %s key reference: %v", credential.ProviderZAI, err)
		return ""
	}
	return v
}
