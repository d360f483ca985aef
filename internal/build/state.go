// Package build drives the two-phase pipeline: a planning agent writes
// an implementation plan, then a fresh coding agent executes it.
package build

// State represents the pipeline's current stage.
type State string

const (
	StatePlanning State = "planning"
	StateBuilding State = "building"
	StateComplete State = "complete"
	StateError    State = "error"
)
