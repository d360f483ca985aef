package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/majorcontext/autobuild/internal/agent"
	"github.com/majorcontext/autobuild/internal/config"
	"github.com/majorcontext/autobuild/internal/log"
	"github.com/majorcontext/autobuild/internal/prompt"
	"github.com/majorcontext/autobuild/internal/router"
	"github.com/majorcontext/autobuild/internal/ui"
)

// PlanFile is the artifact the planning phase must produce.
const PlanFile = "quick_plan.md"

// ErrInterrupted reports a run canceled by the user. The recorded
// state stays whatever was last written; an interrupt is not a phase
// failure.
var ErrInterrupted = errors.New("interrupted")

// ErrPlanMissing reports a planning session that ended without writing
// its plan artifact.
var ErrPlanMissing = errors.New(PlanFile + " was not created")

// ErrSessionFailed reports an agent session that ran but ended with an
// error status.
var ErrSessionFailed = errors.New("agent session failed")

// PhaseError is a fatal failure inside a pipeline phase. The pipeline
// halts; there are no retries.
type PhaseError struct {
	Phase  string
	Reason error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Reason)
}

func (e *PhaseError) Unwrap() error {
	return e.Reason
}

// Orchestrator drives the pipeline: planning, then building, each
// against a fresh agent session.
type Orchestrator struct {
	Runner agent.Runner
	Status StatusSink
	Config *config.Config // nil when the project has no autobuild.yaml
}

// RunOptions describes one pipeline invocation.
type RunOptions struct {
	ProjectDir string
	SpecDir    string
	Model      string            // base model; phases may override
	Task       string
	Branch     string            // "" outside a git repository
	Env        map[string]string // environment snapshot handed to the router
}

// Run executes both phases. It returns nil on success, ErrInterrupted
// when ctx is canceled, and a *PhaseError otherwise.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) error {
	status := o.Status
	if status == nil {
		status = NopSink{}
	}
	status.SetActive(filepath.Base(opts.SpecDir), StatePlanning)

	status.Update(StatePlanning)
	planSettings := PhaseSettings(o.Config, config.PhasePlanning, opts.Model)
	phaseStarted(status, config.PhasePlanning, planSettings.Model)
	if err := o.planning(ctx, opts, planSettings); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		phaseFinished(status, config.PhasePlanning, outcomeError)
		status.Update(StateError)
		return &PhaseError{Phase: config.PhasePlanning, Reason: err}
	}
	phaseFinished(status, config.PhasePlanning, outcomeSuccess)

	status.Update(StateBuilding)
	codeSettings := PhaseSettings(o.Config, config.PhaseCoding, opts.Model)
	phaseStarted(status, config.PhaseCoding, codeSettings.Model)
	if err := o.building(ctx, opts, codeSettings); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		phaseFinished(status, config.PhaseCoding, outcomeError)
		status.Update(StateError)
		return &PhaseError{Phase: config.PhaseCoding, Reason: err}
	}
	phaseFinished(status, config.PhaseCoding, outcomeSuccess)

	status.Update(StateComplete)
	return nil
}

func phaseStarted(s StatusSink, phase, model string) {
	if ps, ok := s.(PhaseSink); ok {
		ps.PhaseStarted(phase, model)
	}
}

func phaseFinished(s StatusSink, phase, outcome string) {
	if ps, ok := s.(PhaseSink); ok {
		ps.PhaseFinished(phase, outcome)
	}
}

// planning runs the planning agent and gates on its artifact: the
// session must succeed AND quick_plan.md must exist afterward.
func (o *Orchestrator) planning(ctx context.Context, opts RunOptions, settings Settings) error {
	fmt.Println()
	fmt.Println(ui.Box([]string{
		ui.Bold("PLANNING PHASE"),
		"",
		"Task: " + ui.Cyan(truncate(opts.Task, 100)),
		ui.Dim("The agent will analyze the task and write an implementation plan."),
	}, 70))
	o.printSettings(settings)

	p, err := prompt.Planning(promptEnv(opts), opts.Task)
	if err != nil {
		return err
	}

	result, err := o.session(ctx, agent.Session{
		AgentType:      agent.TypePlanner,
		Model:          settings.Model,
		Prompt:         p,
		SpecDir:        opts.SpecDir,
		ProjectDir:     opts.ProjectDir,
		ThinkingBudget: settings.ThinkingBudget,
	}, opts.Env)
	if err != nil {
		return err
	}
	if result.Status != agent.StatusSuccess {
		ui.Status("error", "Planning phase failed")
		return ErrSessionFailed
	}

	if _, err := os.Stat(filepath.Join(opts.SpecDir, PlanFile)); err != nil {
		ui.Status("warning", PlanFile+" was not created")
		return ErrPlanMissing
	}

	ui.Status("success", "Planning phase complete")
	return nil
}

// building runs the coding agent against the recorded plan. A fresh
// session means no conversational state carries over from planning.
func (o *Orchestrator) building(ctx context.Context, opts RunOptions, settings Settings) error {
	fmt.Println()
	fmt.Println(ui.Box([]string{
		ui.Bold("IMPLEMENTATION PHASE"),
		"",
		ui.Dim("The agent will now execute the plan."),
	}, 70))
	o.printSettings(settings)

	plan, err := os.ReadFile(filepath.Join(opts.SpecDir, PlanFile))
	if err != nil {
		return fmt.Errorf("reading %s: %w", PlanFile, err)
	}

	p, err := prompt.Implementation(promptEnv(opts), string(plan))
	if err != nil {
		return err
	}

	result, err := o.session(ctx, agent.Session{
		AgentType:      agent.TypeCoder,
		Model:          settings.Model,
		Prompt:         p,
		SpecDir:        opts.SpecDir,
		ProjectDir:     opts.ProjectDir,
		ThinkingBudget: settings.ThinkingBudget,
	}, opts.Env)
	if err != nil {
		return err
	}
	if result.Status != agent.StatusSuccess {
		ui.Status("error", "Implementation phase failed")
		return ErrSessionFailed
	}

	ui.Status("success", "Implementation phase complete")
	return nil
}

// session routes the provider environment for the session's model,
// surfaces routing warnings, and runs the agent.
func (o *Orchestrator) session(ctx context.Context, session agent.Session, env map[string]string) (*agent.Result, error) {
	routed, warnings := router.Route(session.Model, env)
	for _, w := range warnings {
		ui.Warnf("%s", w)
		log.Warn("provider routing", "model", session.Model, "warning", string(w))
	}
	session.Env = routed

	ui.Status("progress", fmt.Sprintf("Starting %s session...", session.AgentType))
	return o.Runner.Run(ctx, session)
}

func (o *Orchestrator) printSettings(s Settings) {
	ui.Status("info", "Model: "+s.Model)
	if s.ThinkingBudget > 0 {
		ui.Status("info", fmt.Sprintf("Thinking budget: %d tokens", s.ThinkingBudget))
	}
}

func promptEnv(opts RunOptions) prompt.Env {
	return prompt.Env{
		ProjectDir: opts.ProjectDir,
		SpecDir:    opts.SpecDir,
		Branch:     opts.Branch,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
