package orchestrator

import (
	"context"
	"fmt"
)

// StageExecutor executes a single pipeline stage against a session.
type StageExecutor interface {
	Execute(ctx context.Context, sess *Session) error
}

// StageFunc adapts a function to StageExecutor.
type StageFunc func(ctx context.Context, sess *Session) error

// Execute calls f.
func (f StageFunc) Execute(ctx context.Context, sess *Session) error { return f(ctx, sess) }

// Router maps stages to executors and refuses to run a stage whose inputs
// are not yet in the session state.
type Router struct {
	executors  map[Stage]StageExecutor
	onComplete func(ctx context.Context, stage Stage, sess *Session) error
}

// NewRouter creates a Router with an empty executor registry.
func NewRouter() *Router {
	return &Router{executors: make(map[Stage]StageExecutor)}
}

// RegisterExecutor associates an executor with a stage.
func (r *Router) RegisterExecutor(stage Stage, exec StageExecutor) {
	r.executors[stage] = exec
}

// OnComplete registers a hook run after every successful stage in
// RouteRange. An error from the hook stops the range.
func (r *Router) OnComplete(fn func(ctx context.Context, stage Stage, sess *Session) error) {
	r.onComplete = fn
}

// Route checks the prerequisites of stage and runs its executor.
func (r *Router) Route(ctx context.Context, stage Stage, sess *Session) error {
	exec, ok := r.executors[stage]
	if !ok {
		return fmt.Errorf("router: no executor registered for stage %d (%s)", stage, stage)
	}
	if err := checkPrerequisites(stage, sess); err != nil {
		return fmt.Errorf("router: prerequisite check failed for stage %d (%s): %w", stage, stage, err)
	}
	return exec.Execute(ctx, sess)
}

// RouteRange executes stages from..to inclusive and returns the stages that
// completed.
func (r *Router) RouteRange(ctx context.Context, from, to Stage, sess *Session) ([]Stage, error) {
	if from > to {
		return nil, fmt.Errorf("router: invalid range: from (%d) > to (%d)", from, to)
	}

	var done []Stage
	for stage := from; stage <= to; stage++ {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := r.Route(ctx, stage, sess); err != nil {
			return done, fmt.Errorf("router: stage %d (%s) failed: %w", stage, stage, err)
		}
		done = append(done, stage)
		if r.onComplete != nil {
			if err := r.onComplete(ctx, stage, sess); err != nil {
				return done, fmt.Errorf("router: after stage %d (%s): %w", stage, stage, err)
			}
		}
	}
	return done, nil
}

// prerequisite is one piece of state a stage reads.
type prerequisite struct {
	name      string
	satisfied func(*Session) bool
}

var (
	hasConversation = prerequisite{"conversation", func(s *Session) bool { return s.State.Conversation.Len() > 0 }}
	notAwaiting     = prerequisite{"an answered clarification", func(s *Session) bool { return !s.AwaitingInput() }}
	hasBrief        = prerequisite{"research_brief", func(s *Session) bool { _, ok := s.State.ResearchBrief(); return ok }}
	hasSupervisor   = prerequisite{"supervisor_log", func(s *Session) bool { return s.State.Supervisor.Len() > 0 }}
	hasRawNotes     = prerequisite{"raw_notes", func(s *Session) bool { return s.State.RawNotes.Len() > 0 }}
)

func prerequisites(stage Stage) []prerequisite {
	switch stage {
	case StageClarify:
		return []prerequisite{hasConversation}
	case StageBrief:
		return []prerequisite{hasConversation, notAwaiting}
	case StageSupervise:
		return []prerequisite{hasBrief, hasSupervisor}
	case StageReduce:
		return []prerequisite{hasBrief, hasRawNotes}
	default:
		return nil
	}
}

func checkPrerequisites(stage Stage, sess *Session) error {
	for _, p := range prerequisites(stage) {
		if !p.satisfied(sess) {
			return &PrerequisiteError{Stage: stage, Missing: p.name}
		}
	}
	return nil
}
