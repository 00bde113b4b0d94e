package worker

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dusk-indust/deepresearch/internal/state"
)

// TaskStore is a concurrency-safe in-memory store for researcher-side task
// tracking. Tasks are kept in a map keyed by ID with a separate slice
// maintaining insertion order for deterministic pagination.
type TaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	orderIDs []string
}

// NewTaskStore returns an initialized TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:    make(map[string]*Task),
		orderIDs: make([]string, 0),
	}
}

// Create stores a new task. It returns an error if the ID is taken.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("worker: task %q already exists", task.ID)
	}
	stored := deepCopyTask(&task)
	s.tasks[task.ID] = stored
	s.orderIDs = append(s.orderIDs, task.ID)
	return nil
}

// Get returns a deep copy of the task with the given ID.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	return deepCopyTask(t), nil
}

// Update applies fn to the stored task under the write lock.
func (s *TaskStore) Update(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	fn(t)
	return nil
}

// List returns tasks matching the filter in insertion order.
//
// PageToken is the ID of the last task on the previous page. PageSize <= 0
// returns every matching task.
func (s *TaskStore) List(filter ListRequest) (*ListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startIdx := 0
	if filter.PageToken != "" {
		found := false
		for i, id := range s.orderIDs {
			if id == filter.PageToken {
				startIdx = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: invalid page token %q", errInvalidParams, filter.PageToken)
		}
	}

	totalSize := 0
	for i := 0; i < startIdx; i++ {
		if matchesFilter(s.tasks[s.orderIDs[i]], filter) {
			totalSize++
		}
	}

	matched := []Task{}
	for i := startIdx; i < len(s.orderIDs); i++ {
		t := s.tasks[s.orderIDs[i]]
		if !matchesFilter(t, filter) {
			continue
		}
		matched = append(matched, *deepCopyTask(t))
	}
	totalSize += len(matched)

	var nextPageToken string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		nextPageToken = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}

	return &ListResponse{
		Tasks:         matched,
		TotalSize:     totalSize,
		NextPageToken: nextPageToken,
	}, nil
}

func matchesFilter(t *Task, filter ListRequest) bool {
	if filter.SessionID != "" && t.SessionID != filter.SessionID {
		return false
	}
	if filter.Status != "" && string(t.Status.State) != filter.Status {
		return false
	}
	return true
}

// deepCopyTask copies the contribution's messages and notes so callers can
// mutate the result freely.
func deepCopyTask(src *Task) *Task {
	dst := *src
	if src.Contribution != nil {
		c := state.Contribution{}
		if src.Contribution.Messages != nil {
			c.Messages = make([]state.Message, len(src.Contribution.Messages))
			for i, m := range src.Contribution.Messages {
				if m.Data != nil {
					data := make(json.RawMessage, len(m.Data))
					copy(data, m.Data)
					m.Data = data
				}
				c.Messages[i] = m
			}
		}
		if src.Contribution.RawNotes != nil {
			c.RawNotes = make([]string, len(src.Contribution.RawNotes))
			copy(c.RawNotes, src.Contribution.RawNotes)
		}
		dst.Contribution = &c
	}
	return &dst
}
