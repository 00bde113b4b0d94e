// Package orchestrator drives a research session through its four stages:
// the clarification gate, brief extraction, supervised parallel research,
// and the reduction of raw notes into a final report.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// Stage identifies a pipeline stage.
type Stage int

const (
	StageClarify   Stage = 0
	StageBrief     Stage = 1
	StageSupervise Stage = 2
	StageReduce    Stage = 3
)

var stageNames = [...]string{"clarify", "brief", "supervise", "reduce"}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("orchestrator: unknown stage %q", b)
}

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{StageClarify, StageBrief, StageSupervise, StageReduce}
}

// ProgressEvent is emitted to subscribers while a session runs.
type ProgressEvent struct {
	SessionID string         `json:"sessionId"`
	Stage     Stage          `json:"stage"`
	Section   string         `json:"section"`
	Status    ProgressStatus `json:"status"`
	Message   string         `json:"message,omitempty"`
}

// ProgressStatus is the state of a stage or research topic.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
	ProgressWaiting  ProgressStatus = "waiting"
)

// Outcome is what a caller sees after Start or Resume returns. When Phase is
// awaiting_input, Question holds what the user must answer.
type Outcome struct {
	SessionID    string           `json:"sessionId"`
	Phase        checkpoint.Phase `json:"phase"`
	Question     string           `json:"question,omitempty"`
	Verification string           `json:"verification,omitempty"`
	FinalReport  string           `json:"finalReport,omitempty"`
	Rounds       int              `json:"rounds"`
	Error        string           `json:"error,omitempty"`
}

// Orchestrator runs research sessions.
type Orchestrator interface {
	// Start runs a new session until it completes, fails, or pauses at the
	// clarification gate. An empty sessionID gets a generated one.
	Start(ctx context.Context, sessionID string, in state.InputState) (*Outcome, error)

	// Resume merges the user's reply into a paused session and runs it on.
	Resume(ctx context.Context, sessionID string, reply state.Message) (*Outcome, error)

	// Session returns the latest checkpoint of a session.
	Session(ctx context.Context, sessionID string) (*checkpoint.Checkpoint, error)

	// List returns every known session, most recently updated first.
	List(ctx context.Context) ([]checkpoint.Checkpoint, error)
}
