// Package prompt assembles the planning and implementation prompts.
// Templates ship as embedded defaults; a project can override any of
// them by dropping a same-named file under .autobuild/prompts/.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.md
var defaultsFS embed.FS

// Template names accepted by Load.
const (
	PlannerTemplate = "quick_planner"
	CoderTemplate   = "quick_coder"
)

// overrideDir is the project-relative directory searched for template
// overrides.
var overrideDir = filepath.Join(".autobuild", "prompts")

// Env describes the run for the prompt's environment header.
type Env struct {
	ProjectDir string
	SpecDir    string
	Branch     string // empty when the project is not a git repository
}

func (e Env) header() string {
	var b strings.Builder
	b.WriteString("## ENVIRONMENT\n\n")
	fmt.Fprintf(&b, "Working directory: %s\n", e.ProjectDir)
	fmt.Fprintf(&b, "Spec directory: %s\n", e.SpecDir)
	if e.Branch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", e.Branch)
	}
	return b.String()
}

// Load returns the named template, preferring a project override at
// .autobuild/prompts/<name>.md over the embedded default.
func Load(projectDir, name string) (string, error) {
	override := filepath.Join(projectDir, overrideDir, name+".md")
	data, err := os.ReadFile(override)
	if err == nil {
		return strings.TrimRight(string(data), "\n"), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading prompt override %s: %w", override, err)
	}

	data, err = defaultsFS.ReadFile("templates/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("prompt template not found: %s", name)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// Planning assembles the planning phase prompt: environment header,
// planner template, then the task description.
func Planning(env Env, task string) (string, error) {
	template, err := Load(env.ProjectDir, PlannerTemplate)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(env.header())
	b.WriteString("\n---\n\n")
	b.WriteString(template)
	b.WriteString("\n\n---\n\n## TASK DESCRIPTION\n\n")
	b.WriteString(task)
	b.WriteString("\n")
	return b.String(), nil
}

// Implementation assembles the implementation phase prompt, embedding
// the plan verbatim.
func Implementation(env Env, plan string) (string, error) {
	template, err := Load(env.ProjectDir, CoderTemplate)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(env.header())
	b.WriteString("\n---\n\n")
	b.WriteString(template)
	b.WriteString("\n\n---\n\n## IMPLEMENTATION PLAN\n\n")
	b.WriteString("The planning phase created this plan for you to execute:\n\n")
	b.WriteString("```markdown\n")
	b.WriteString(plan)
	b.WriteString("\n```\n\nExecute this plan now.\n")
	return b.String(), nil
}
