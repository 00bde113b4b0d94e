package orchestrator

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/deepresearch/internal/state"
)

var (
	// ErrAwaitingInput stops a run at the clarification gate. Pipeline turns
	// it into an awaiting_input Outcome; it never reaches callers of Start.
	ErrAwaitingInput = errors.New("orchestrator: awaiting user input")

	// ErrNotAwaitingInput is returned by Resume for sessions that are not
	// paused at the clarification gate.
	ErrNotAwaitingInput = errors.New("orchestrator: session is not awaiting input")

	// ErrNoContributions means a supervisor round finished with no
	// successful sub-research.
	ErrNoContributions = errors.New("orchestrator: no research contributions")

	// ErrSessionExists is returned by Start for an ID that is already in use.
	ErrSessionExists = errors.New("orchestrator: session already exists")
)

// PrerequisiteError reports a stage routed before the state it reads exists.
type PrerequisiteError struct {
	Stage   Stage
	Missing string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("orchestrator: stage %s requires %s", e.Stage, e.Missing)
}

// Unwrap classifies prerequisite failures as ordering violations.
func (e *PrerequisiteError) Unwrap() error { return state.ErrOrdering }
