package worker

import (
	"time"

	"github.com/dusk-indust/deepresearch/internal/state"
)

// TaskState is the lifecycle state of a research task.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
)

// IsTerminal returns true if the task state is a final state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// Task is one sub-research job run by a researcher.
type Task struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Topic     string     `json:"topic"`
	Status    TaskStatus `json:"status"`

	// Contribution is set once the task completes.
	Contribution *state.Contribution `json:"contribution,omitempty"`
}

// TaskStatus tracks the current state and when it changed.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Card is the self-describing manifest a researcher serves at
// /.well-known/researcher.json.
type Card struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	URL         string   `json:"url,omitempty"`
	Model       string   `json:"model,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

// RunRequest asks a researcher to investigate one topic. The call blocks
// until the task reaches a terminal state.
type RunRequest struct {
	SessionID string `json:"sessionId"`
	// TaskID is the caller's identity for the sub-task. It names the
	// contribution message, so re-running the same sub-task replaces its
	// earlier findings. The researcher's own task ID is used when empty.
	TaskID string `json:"taskId,omitempty"`
	Brief  string `json:"brief"`
	Topic  string `json:"topic"`
}

// GetRequest retrieves a task by ID.
type GetRequest struct {
	ID string `json:"id"`
}

// ListRequest queries tasks with filtering and pagination.
type ListRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Status    string `json:"status,omitempty"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

// ListResponse is the paginated response for List.
type ListResponse struct {
	Tasks         []Task `json:"tasks"`
	TotalSize     int    `json:"totalSize"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// CancelRequest cancels a running task.
type CancelRequest struct {
	ID string `json:"id"`
}
