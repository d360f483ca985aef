// Package agent runs collaborating agent sessions against the
// Anthropic Messages API. Each session is one prompt plus a tool loop
// that lets the agent read and modify the project.
package agent

import "context"

// Agent types carried in the session's system prompt.
const (
	TypePlanner = "planner"
	TypeCoder   = "coder"
)

// Session statuses reported in Result.Status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Session describes a single agent invocation.
type Session struct {
	AgentType      string
	Model          string
	Prompt         string
	SpecDir        string
	ProjectDir     string
	ThinkingBudget int               // thinking tokens; 0 disables extended thinking
	Env            map[string]string // routed provider environment
}

// Result is a completed session's outcome. Status "error" means the
// agent ran and failed at its task; transport failures are returned as
// Go errors instead.
type Result struct {
	Status   string
	Response string
	Turns    int
}

// Runner executes agent sessions.
type Runner interface {
	Run(ctx context.Context, session Session) (*Result, error)
}
