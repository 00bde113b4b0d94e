// Package checkpoint persists research sessions so that a session paused at
// the clarification gate can be resumed later, possibly by another process.
package checkpoint

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dusk-indust/deepresearch/internal/state"
)

// ErrNotFound is returned when no checkpoint exists for a session.
var ErrNotFound = errors.New("checkpoint: session not found")

// Phase is where a session stands in the pipeline.
type Phase string

const (
	PhaseClarifying    Phase = "clarifying"
	PhaseAwaitingInput Phase = "awaiting_input"
	PhaseResearching   Phase = "researching"
	PhaseReducing      Phase = "reducing"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
)

// IsTerminal reports whether no further work will happen for the session.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Checkpoint is a persisted session.
type Checkpoint struct {
	SessionID    string         `json:"sessionId"`
	Phase        Phase          `json:"phase"`
	Question     string         `json:"question,omitempty"`
	Verification string         `json:"verification,omitempty"`
	Rounds       int            `json:"rounds,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	State        state.Snapshot `json:"state"`
}

// Store persists checkpoints keyed by session ID. Save overwrites.
type Store interface {
	io.Closer

	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, sessionID string) (*Checkpoint, error)
	// List returns every checkpoint, most recently updated first.
	List(ctx context.Context) ([]Checkpoint, error)
	Delete(ctx context.Context, sessionID string) error
}

// Revisioner is implemented by stores that other processes may write to. A
// revision is an opaque token that changes whenever the session's checkpoint
// is rewritten; CachedStore compares it before serving a cached copy.
type Revisioner interface {
	Revision(ctx context.Context, sessionID string) (string, error)
}

// Compile-time interface checks.
var (
	_ Store = (*MemStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*CachedStore)(nil)

	_ Revisioner = (*FileStore)(nil)
	_ Revisioner = (*SQLStore)(nil)
)

func validate(cp Checkpoint) error {
	if strings.TrimSpace(cp.SessionID) == "" {
		return errors.New("checkpoint: empty session id")
	}
	if cp.State.ID != "" && cp.State.ID != cp.SessionID {
		return errors.New("checkpoint: state id does not match session id")
	}
	return nil
}

func sortByUpdated(cps []Checkpoint) {
	sort.SliceStable(cps, func(i, j int) bool {
		if !cps[i].UpdatedAt.Equal(cps[j].UpdatedAt) {
			return cps[i].UpdatedAt.After(cps[j].UpdatedAt)
		}
		return cps[i].SessionID < cps[j].SessionID
	})
}

// stamp fills in timestamps on save.
func stamp(cp *Checkpoint, now time.Time) {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
}
