package worker

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/deepresearch/internal/state"
)

func makeTask(id, session string, st TaskState) Task {
	return Task{
		ID:        id,
		SessionID: session,
		Topic:     "topic " + id,
		Status:    TaskStatus{State: st, Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestTaskStore_CreateGet(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(makeTask("t1", "s1", TaskStateSubmitted)))

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)

	err = s.Create(makeTask("t1", "s1", TaskStateSubmitted))
	assert.Error(t, err)

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestTaskStore_GetReturnsDeepCopy(t *testing.T) {
	s := NewTaskStore()
	task := makeTask("t1", "s1", TaskStateCompleted)
	task.Contribution = &state.Contribution{
		Messages: []state.Message{{ID: "t1", Role: state.RoleTool, Data: []byte(`{"a":1}`)}},
		RawNotes: []string{"n1"},
	}
	require.NoError(t, s.Create(task))

	got, err := s.Get("t1")
	require.NoError(t, err)
	got.Contribution.RawNotes[0] = "mutated"
	got.Contribution.Messages[0].Data[2] = 'X'

	again, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "n1", again.Contribution.RawNotes[0])
	assert.JSONEq(t, `{"a":1}`, string(again.Contribution.Messages[0].Data))
}

func TestTaskStore_Update(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(makeTask("t1", "s1", TaskStateSubmitted)))

	require.NoError(t, s.Update("t1", func(task *Task) {
		task.Status.State = TaskStateWorking
	}))
	got, _ := s.Get("t1")
	assert.Equal(t, TaskStateWorking, got.Status.State)

	err := s.Update("missing", func(*Task) {})
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestTaskStore_ListFilterAndPaginate(t *testing.T) {
	s := NewTaskStore()
	for i := 0; i < 5; i++ {
		st := TaskStateCompleted
		if i%2 == 1 {
			st = TaskStateFailed
		}
		require.NoError(t, s.Create(makeTask(fmt.Sprintf("t%d", i), "s1", st)))
	}
	require.NoError(t, s.Create(makeTask("other", "s2", TaskStateCompleted)))

	all, err := s.List(ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, 6, all.TotalSize)

	bySession, err := s.List(ListRequest{SessionID: "s1", Status: string(TaskStateCompleted)})
	require.NoError(t, err)
	assert.Equal(t, 3, bySession.TotalSize)

	page1, err := s.List(ListRequest{SessionID: "s1", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page1.Tasks, 2)
	assert.Equal(t, "t1", page1.NextPageToken)
	assert.Equal(t, 5, page1.TotalSize)

	page2, err := s.List(ListRequest{SessionID: "s1", PageSize: 2, PageToken: page1.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page2.Tasks, 2)
	assert.Equal(t, "t2", page2.Tasks[0].ID)
	assert.Equal(t, 5, page2.TotalSize)

	_, err = s.List(ListRequest{PageToken: "nope"})
	assert.Error(t, err)

	empty, err := s.List(ListRequest{SessionID: "none"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Tasks)
	assert.Empty(t, empty.Tasks)
}

func TestTaskStore_ConcurrentAccess(t *testing.T) {
	s := NewTaskStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			assert.NoError(t, s.Create(makeTask(id, "s", TaskStateSubmitted)))
			assert.NoError(t, s.Update(id, func(task *Task) { task.Status.State = TaskStateCompleted }))
			_, err := s.List(ListRequest{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	resp, err := s.List(ListRequest{Status: string(TaskStateCompleted)})
	require.NoError(t, err)
	assert.Equal(t, 50, resp.TotalSize)
}
