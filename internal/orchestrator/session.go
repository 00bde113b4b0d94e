package orchestrator

import (
	"time"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// Session is the in-memory form of a running research session. Stages read
// and write its State; the remaining fields are bookkeeping persisted in
// checkpoints.
type Session struct {
	ID           string
	State        *state.PipelineState
	Phase        checkpoint.Phase
	Question     string
	Verification string
	Rounds       int
	Error        string
	CreatedAt    time.Time
}

// AwaitingInput reports whether the session is paused on a question.
func (s *Session) AwaitingInput() bool {
	return s.Phase == checkpoint.PhaseAwaitingInput
}

func (s *Session) checkpoint(now time.Time) checkpoint.Checkpoint {
	return checkpoint.Checkpoint{
		SessionID:    s.ID,
		Phase:        s.Phase,
		Question:     s.Question,
		Verification: s.Verification,
		Rounds:       s.Rounds,
		Error:        s.Error,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    now,
		State:        s.State.Snapshot(),
	}
}

func (s *Session) outcome() *Outcome {
	report, _ := s.State.FinalReport()
	return &Outcome{
		SessionID:    s.ID,
		Phase:        s.Phase,
		Question:     s.Question,
		Verification: s.Verification,
		FinalReport:  report,
		Rounds:       s.Rounds,
		Error:        s.Error,
	}
}

func sessionFromCheckpoint(cp *checkpoint.Checkpoint) (*Session, error) {
	st, err := state.Restore(cp.State)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:           cp.SessionID,
		State:        st,
		Phase:        cp.Phase,
		Question:     cp.Question,
		Verification: cp.Verification,
		Rounds:       cp.Rounds,
		Error:        cp.Error,
		CreatedAt:    cp.CreatedAt,
	}, nil
}

// phaseFor is the checkpoint phase recorded while stage runs.
func phaseFor(stage Stage) checkpoint.Phase {
	switch stage {
	case StageClarify:
		return checkpoint.PhaseClarifying
	case StageReduce:
		return checkpoint.PhaseReducing
	default:
		return checkpoint.PhaseResearching
	}
}
