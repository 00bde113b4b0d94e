package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/model"
	"github.com/dusk-indust/deepresearch/internal/schema"
	"github.com/dusk-indust/deepresearch/internal/state"
)

var errInvalidParams = errors.New("worker: invalid params")

// Compile-time interface check.
var _ Handler = (*Researcher)(nil)

// ResearchFunc investigates one topic. It receives the task in the working
// state and returns the contribution to attach to the completed task.
type ResearchFunc func(ctx context.Context, task *Task, req RunRequest) (state.Contribution, error)

// Researcher provides the task lifecycle around a ResearchFunc and serves it
// over HTTP. Tasks move submitted -> working -> completed, failed or canceled.
type Researcher struct {
	server   *Server
	store    *TaskStore
	card     Card
	research ResearchFunc
	logger   *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewResearcher creates a Researcher. A nil logger discards logs.
func NewResearcher(card Card, research ResearchFunc, logger *zap.Logger) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Researcher{
		store:    NewTaskStore(),
		card:     card,
		research: research,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
	r.server = NewServer(card, r, logger)
	return r
}

// Card returns the researcher's card.
func (r *Researcher) Card() Card { return r.card }

// Server returns the HTTP server wrapping this researcher.
func (r *Researcher) Server() *Server { return r.server }

// Start launches the HTTP server on addr.
func (r *Researcher) Start(ctx context.Context, addr string) error {
	return r.server.Start(ctx, addr)
}

// Stop gracefully shuts down the HTTP server.
func (r *Researcher) Stop(ctx context.Context) error {
	return r.server.Stop(ctx)
}

// HandleRun creates a task for req and runs it to completion.
func (r *Researcher) HandleRun(ctx context.Context, req RunRequest) (*Task, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is empty", errInvalidParams)
	}

	task := Task{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Topic:     req.Topic,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: time.Now()},
	}
	if err := r.store.Create(task); err != nil {
		return nil, err
	}
	log := r.logger.With(zap.String("task", task.ID), zap.String("session", req.SessionID))

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancels[task.ID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.cancels, task.ID)
		r.mu.Unlock()
		cancel()
	}()

	if err := r.store.Update(task.ID, func(t *Task) {
		t.Status = TaskStatus{State: TaskStateWorking, Timestamp: time.Now()}
	}); err != nil {
		return nil, err
	}
	task.Status.State = TaskStateWorking
	log.Debug("research started", zap.String("topic", req.Topic))

	contribution, err := r.research(ctx, &task, req)
	if err != nil {
		_ = r.store.Update(task.ID, func(t *Task) {
			if t.Status.State == TaskStateCanceled {
				return
			}
			t.Status = TaskStatus{State: TaskStateFailed, Message: err.Error(), Timestamp: time.Now()}
		})
		log.Warn("research failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrTaskFailed, task.ID, err)
	}

	if err := r.store.Update(task.ID, func(t *Task) {
		t.Status = TaskStatus{State: TaskStateCompleted, Timestamp: time.Now()}
		t.Contribution = &contribution
	}); err != nil {
		return nil, err
	}
	log.Debug("research completed", zap.Int("raw_notes", len(contribution.RawNotes)))
	return r.store.Get(task.ID)
}

// HandleGet retrieves a task by ID.
func (r *Researcher) HandleGet(_ context.Context, req GetRequest) (*Task, error) {
	return r.store.Get(req.ID)
}

// HandleList returns tasks matching the filter.
func (r *Researcher) HandleList(_ context.Context, req ListRequest) (*ListResponse, error) {
	return r.store.List(req)
}

// HandleCancel cancels a task that has not reached a terminal state.
func (r *Researcher) HandleCancel(_ context.Context, req CancelRequest) (*Task, error) {
	err := r.store.Update(req.ID, func(t *Task) {
		if !t.Status.State.IsTerminal() {
			t.Status = TaskStatus{State: TaskStateCanceled, Timestamp: time.Now()}
		}
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if cancel, ok := r.cancels[req.ID]; ok {
		cancel()
	}
	r.mu.Unlock()

	return r.store.Get(req.ID)
}

// NewModelResearcher returns a ResearchFunc that asks m for research
// findings. The findings become a tool message named by ContributionID, so
// re-applying the same sub-task's contribution never duplicates it, plus one
// raw note per finding.
func NewModelResearcher(m model.Model, name string) ResearchFunc {
	return func(ctx context.Context, task *Task, req RunRequest) (state.Contribution, error) {
		raw, err := m.Generate(ctx, model.Request{
			Schema:   schema.NameResearchFindings,
			Messages: []state.Message{{ID: task.ID + "-brief", Role: state.RoleUser, Content: req.Brief}},
			Input:    req.Topic,
		})
		if err != nil {
			return state.Contribution{}, err
		}
		findings, err := schema.DecodeResearchFindings(raw)
		if err != nil {
			return state.Contribution{}, err
		}
		return FindingsContribution(ContributionID(task, req), name, req.Topic, findings)
	}
}

// ContributionID returns the message ID for the findings of a run: the
// caller's TaskID when given, the researcher's task ID otherwise.
func ContributionID(task *Task, req RunRequest) string {
	if req.TaskID != "" {
		return req.TaskID
	}
	return task.ID
}

// FindingsContribution converts decoded findings into a contribution.
func FindingsContribution(id, name, topic string, findings schema.ResearchFindings) (state.Contribution, error) {
	data, err := json.Marshal(findings)
	if err != nil {
		return state.Contribution{}, fmt.Errorf("worker: encode findings: %w", err)
	}

	content := strings.TrimSpace(findings.Summary)
	if content == "" {
		content = strings.Join(findings.Notes, "\n")
	}

	notes := findings.Notes
	if len(notes) == 0 {
		notes = []string{findings.Summary}
	}

	return state.Contribution{
		Messages: []state.Message{{
			ID:        id,
			Role:      state.RoleTool,
			Name:      name,
			Content:   "Topic: " + topic + "\n" + content,
			Data:      data,
			CreatedAt: time.Now().UTC(),
		}},
		RawNotes: append([]string(nil), notes...),
	}, nil
}
