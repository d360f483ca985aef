package build

import "github.com/majorcontext/autobuild/internal/config"

// Settings holds a phase's resolved model and thinking budget.
type Settings struct {
	Model          string
	ThinkingBudget int
}

// PhaseSettings resolves per-phase settings: the project config's
// phases: entry overrides the run's base model and supplies the
// optional thinking budget. Phases resolve independently.
func PhaseSettings(cfg *config.Config, phase, baseModel string) Settings {
	s := Settings{Model: baseModel}
	pc := cfg.Phase(phase)
	if pc.Model != "" {
		s.Model = pc.Model
	}
	s.ThinkingBudget = pc.ThinkingBudget
	return s
}
