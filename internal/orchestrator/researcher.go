package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dusk-indust/deepresearch/internal/state"
	"github.com/dusk-indust/deepresearch/internal/worker"
)

// Researcher investigates one topic and returns what it found.
type Researcher interface {
	Research(ctx context.Context, task ResearchTask) (state.Contribution, error)
}

// Compile-time interface checks.
var (
	_ Researcher = (*LocalResearcher)(nil)
	_ Researcher = (*RemoteResearcher)(nil)
)

// LocalResearcher runs a worker.ResearchFunc in-process. It is the
// single-agent mode used when no remote researchers are reachable.
type LocalResearcher struct {
	fn worker.ResearchFunc
}

// NewLocalResearcher wraps fn.
func NewLocalResearcher(fn worker.ResearchFunc) *LocalResearcher {
	return &LocalResearcher{fn: fn}
}

// Research implements Researcher.
func (l *LocalResearcher) Research(ctx context.Context, task ResearchTask) (state.Contribution, error) {
	wt := &worker.Task{
		ID:        task.ID,
		SessionID: task.SessionID,
		Topic:     task.Topic,
		Status:    worker.TaskStatus{State: worker.TaskStateWorking},
	}
	return l.fn(ctx, wt, worker.RunRequest{
		SessionID: task.SessionID,
		TaskID:    task.ID,
		Brief:     task.Brief,
		Topic:     task.Topic,
	})
}

// RemoteResearcher sends tasks round-robin to researcher processes.
type RemoteResearcher struct {
	client    worker.Client
	endpoints []string
	next      atomic.Uint64
}

// NewRemoteResearcher creates a RemoteResearcher over endpoints.
func NewRemoteResearcher(client worker.Client, endpoints []string) (*RemoteResearcher, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("orchestrator: no researcher endpoints")
	}
	return &RemoteResearcher{
		client:    client,
		endpoints: append([]string(nil), endpoints...),
	}, nil
}

// Research implements Researcher.
func (r *RemoteResearcher) Research(ctx context.Context, task ResearchTask) (state.Contribution, error) {
	endpoint := r.endpoints[(r.next.Add(1)-1)%uint64(len(r.endpoints))]

	t, err := r.client.Run(ctx, endpoint, worker.RunRequest{
		SessionID: task.SessionID,
		TaskID:    task.ID,
		Brief:     task.Brief,
		Topic:     task.Topic,
	})
	if err != nil {
		return state.Contribution{}, fmt.Errorf("remote researcher %s: %w", endpoint, err)
	}
	if t.Status.State != worker.TaskStateCompleted {
		return state.Contribution{}, fmt.Errorf("remote researcher %s: task %s ended %s: %s", endpoint, t.ID, t.Status.State, t.Status.Message)
	}
	if t.Contribution == nil {
		return state.Contribution{}, fmt.Errorf("remote researcher %s: task %s returned no contribution", endpoint, t.ID)
	}
	return *t.Contribution, nil
}
