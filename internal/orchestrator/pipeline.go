package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/model"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// Compile-time interface check.
var _ Orchestrator = (*Pipeline)(nil)

// Pipeline runs sessions through the four stages. Stage routing goes
// through a Router, sub-research through a FanOut, and every stage boundary
// is checkpointed so a paused session can be resumed by another process
// sharing the store.
type Pipeline struct {
	cfg      Config
	model    model.Model
	store    checkpoint.Store
	router   *Router
	progress *ProgressReporter
	fanout   *FanOut
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline wires a Pipeline. The store is owned by the caller.
func NewPipeline(cfg Config, m model.Model, r Researcher, store checkpoint.Store) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:      cfg,
		model:    m,
		store:    store,
		router:   NewRouter(),
		progress: NewProgressReporter(),
		logger:   cfg.Logger,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[string]*sync.Mutex),
	}
	p.fanout = NewFanOut(r, cfg.MaxConcurrentResearch, cfg.SubTaskTimeout, p.progress.Emit, cfg.Logger)

	p.router.RegisterExecutor(StageClarify, p.tracked(StageClarify, p.clarify))
	p.router.RegisterExecutor(StageBrief, p.tracked(StageBrief, p.brief))
	p.router.RegisterExecutor(StageSupervise, p.tracked(StageSupervise, p.supervise))
	p.router.RegisterExecutor(StageReduce, p.tracked(StageReduce, p.reduce))
	p.router.OnComplete(func(ctx context.Context, stage Stage, sess *Session) error {
		if stage < StageReduce {
			sess.Phase = phaseFor(stage + 1)
		}
		return p.save(ctx, sess)
	})
	return p
}

// Start implements Orchestrator.
func (p *Pipeline) Start(ctx context.Context, sessionID string, in state.InputState) (*Outcome, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	unlock := p.lock(sessionID)
	defer unlock()

	if _, err := p.store.Load(ctx, sessionID); err == nil {
		return nil, fmt.Errorf("pipeline: start %s: %w", sessionID, ErrSessionExists)
	} else if !errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("pipeline: start %s: %w", sessionID, err)
	}

	st, err := state.NewPipelineState(sessionID, in)
	if err != nil {
		return nil, fmt.Errorf("pipeline: start: %w", err)
	}
	sess := &Session{ID: sessionID, State: st, CreatedAt: p.now()}

	p.logger.Info("session started", zap.String("session", sessionID), zap.Int("messages", len(in.Messages)))
	return p.run(ctx, sess, StageClarify)
}

// Resume implements Orchestrator. The reply must be a user message; it is
// merged into the conversation and the session re-enters the clarification
// gate.
func (p *Pipeline) Resume(ctx context.Context, sessionID string, reply state.Message) (*Outcome, error) {
	if err := state.ValidateMessage(reply, 0); err != nil {
		return nil, fmt.Errorf("pipeline: resume: %w", err)
	}
	if reply.Role != state.RoleUser {
		return nil, fmt.Errorf("pipeline: resume: %w", &state.ValidationError{
			Field: "reply", Index: 0, Reason: "reply must have role user",
		})
	}

	unlock := p.lock(sessionID)
	defer unlock()

	cp, err := p.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resume %s: %w", sessionID, err)
	}
	if cp.Phase != checkpoint.PhaseAwaitingInput {
		return nil, fmt.Errorf("pipeline: resume %s (phase %s): %w", sessionID, cp.Phase, ErrNotAwaitingInput)
	}

	sess, err := sessionFromCheckpoint(cp)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resume %s: %w", sessionID, err)
	}
	if _, dup := sess.State.Conversation.Get(reply.ID); dup {
		return nil, fmt.Errorf("pipeline: resume %s: %w", sessionID, &state.ValidationError{
			Field: "reply", Index: -1, Reason: "message " + reply.ID + " is already in the conversation",
		})
	}
	if err := sess.State.MergeConversation(reply); err != nil {
		return nil, fmt.Errorf("pipeline: resume %s: %w", sessionID, err)
	}
	sess.Question = ""

	p.logger.Info("session resumed", zap.String("session", sessionID))
	return p.run(ctx, sess, StageClarify)
}

// Session implements Orchestrator.
func (p *Pipeline) Session(ctx context.Context, sessionID string) (*checkpoint.Checkpoint, error) {
	return p.store.Load(ctx, sessionID)
}

// List implements Orchestrator.
func (p *Pipeline) List(ctx context.Context) ([]checkpoint.Checkpoint, error) {
	return p.store.List(ctx)
}

// Progress subscribes to progress events of every session run by p.
func (p *Pipeline) Progress() (<-chan ProgressEvent, func()) {
	return p.progress.Subscribe()
}

// Close ends all progress subscriptions.
func (p *Pipeline) Close() {
	p.progress.Close()
}

func (p *Pipeline) run(ctx context.Context, sess *Session, from Stage) (*Outcome, error) {
	sess.Phase = phaseFor(from)
	sess.Error = ""
	if err := p.save(ctx, sess); err != nil {
		return nil, err
	}

	_, err := p.router.RouteRange(ctx, from, StageReduce, sess)

	// Terminal checkpoints are written even when ctx is already done.
	saveCtx := context.WithoutCancel(ctx)
	switch {
	case errors.Is(err, ErrAwaitingInput):
		sess.Phase = checkpoint.PhaseAwaitingInput
		if err := p.save(saveCtx, sess); err != nil {
			return nil, err
		}
		p.logger.Info("session awaiting input", zap.String("session", sess.ID))
		return sess.outcome(), nil

	case err != nil:
		sess.Phase = checkpoint.PhaseFailed
		sess.Error = err.Error()
		if serr := p.save(saveCtx, sess); serr != nil {
			p.logger.Error("checkpoint failed session", zap.String("session", sess.ID), zap.Error(serr))
		}
		p.logger.Error("session failed", zap.String("session", sess.ID), zap.Error(err))
		return sess.outcome(), fmt.Errorf("pipeline: session %s: %w", sess.ID, err)
	}

	sess.Phase = checkpoint.PhaseCompleted
	if err := p.save(saveCtx, sess); err != nil {
		return nil, err
	}
	p.logger.Info("session completed", zap.String("session", sess.ID), zap.Int("rounds", sess.Rounds))
	return sess.outcome(), nil
}

// tracked wraps a stage so that it reports progress.
func (p *Pipeline) tracked(stage Stage, fn StageFunc) StageExecutor {
	return StageFunc(func(ctx context.Context, sess *Session) error {
		p.progress.Emit(ProgressEvent{SessionID: sess.ID, Stage: stage, Section: stage.String(), Status: ProgressWorking})
		start := time.Now()

		err := fn(ctx, sess)

		ev := ProgressEvent{SessionID: sess.ID, Stage: stage, Section: stage.String()}
		switch {
		case errors.Is(err, ErrAwaitingInput):
			ev.Status = ProgressWaiting
			ev.Message = sess.Question
		case err != nil:
			ev.Status = ProgressFailed
			ev.Message = err.Error()
		default:
			ev.Status = ProgressComplete
		}
		p.progress.Emit(ev)
		p.logger.Debug("stage finished",
			zap.String("session", sess.ID),
			zap.Stringer("stage", stage),
			zap.String("status", string(ev.Status)),
			zap.Duration("duration", time.Since(start)))
		return err
	})
}

func (p *Pipeline) save(ctx context.Context, sess *Session) error {
	if err := p.store.Save(ctx, sess.checkpoint(p.now())); err != nil {
		return fmt.Errorf("pipeline: checkpoint %s: %w", sess.ID, err)
	}
	return nil
}

// lock serialises runs of the same session within this process.
func (p *Pipeline) lock(sessionID string) func() {
	p.mu.Lock()
	l, ok := p.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[sessionID] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func isOrdering(err error) bool {
	return errors.Is(err, state.ErrOrdering)
}
