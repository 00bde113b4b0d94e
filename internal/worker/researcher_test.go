package worker

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/deepresearch/internal/model"
	"github.com/dusk-indust/deepresearch/internal/schema"
	"github.com/dusk-indust/deepresearch/internal/state"
)

func startResearcher(t *testing.T, fn ResearchFunc) (*Researcher, string) {
	t.Helper()
	r := NewResearcher(Card{Name: "test-researcher", Version: "0.0.1"}, fn, nil)
	ts := httptest.NewServer(r.Server().Routes())
	t.Cleanup(ts.Close)
	return r, ts.URL
}

func TestResearcher_RunOverHTTP(t *testing.T) {
	m := model.NewScripted().
		Reply(schema.NameResearchFindings, `{"summary":"GPUs are fast","notes":["n1","n2"]}`)
	_, url := startResearcher(t, NewModelResearcher(m, "r1"))

	client := NewHTTPClient(WithTimeout(5 * time.Second))
	task, err := client.Run(context.Background(), url, RunRequest{SessionID: "s1", Brief: "brief", Topic: "GPUs"})
	require.NoError(t, err)

	assert.Equal(t, TaskStateCompleted, task.Status.State)
	require.NotNil(t, task.Contribution)
	assert.Equal(t, []string{"n1", "n2"}, task.Contribution.RawNotes)
	require.Len(t, task.Contribution.Messages, 1)
	msg := task.Contribution.Messages[0]
	assert.Equal(t, task.ID, msg.ID)
	assert.Equal(t, state.RoleTool, msg.Role)
	assert.Equal(t, "r1", msg.Name)
	assert.Contains(t, msg.Content, "GPUs are fast")

	got, err := client.Get(context.Background(), url, GetRequest{ID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, got.Status.State)

	list, err := client.List(context.Background(), url, ListRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.TotalSize)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "GPUs", reqs[0].Input)
	assert.Equal(t, "brief", reqs[0].Messages[0].Content)
}

func TestResearcher_CallerTaskIDNamesContribution(t *testing.T) {
	m := model.NewScripted().
		Reply(schema.NameResearchFindings, `{"summary":"first","notes":["n1"]}`).
		Reply(schema.NameResearchFindings, `{"summary":"second","notes":["n2"]}`)
	r := NewResearcher(Card{Name: "r"}, NewModelResearcher(m, "r"), nil)

	req := RunRequest{SessionID: "s1", TaskID: "s1-r2-t0", Brief: "brief", Topic: "GPUs"}
	first, err := r.HandleRun(context.Background(), req)
	require.NoError(t, err)
	second, err := r.HandleRun(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "s1-r2-t0", first.Contribution.Messages[0].ID)
	assert.Equal(t, "s1-r2-t0", second.Contribution.Messages[0].ID)

	log := state.NewMessageLog()
	require.NoError(t, log.Merge(first.Contribution.Messages...))
	require.NoError(t, log.Merge(second.Contribution.Messages...))
	require.Equal(t, 1, log.Len())
	got, ok := log.Get("s1-r2-t0")
	require.True(t, ok)
	assert.Contains(t, got.Content, "second")
}

func TestResearcher_FailureMapsToRPCError(t *testing.T) {
	r, url := startResearcher(t, func(context.Context, *Task, RunRequest) (state.Contribution, error) {
		return state.Contribution{}, errors.New("search backend down")
	})

	client := NewHTTPClient()
	_, err := client.Run(context.Background(), url, RunRequest{SessionID: "s1", Topic: "x"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeTaskFailed, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "search backend down")

	list, err := r.HandleList(context.Background(), ListRequest{Status: string(TaskStateFailed)})
	require.NoError(t, err)
	assert.Equal(t, 1, list.TotalSize)
}

func TestResearcher_InvalidDecisionFailsTask(t *testing.T) {
	m := model.NewScripted().Reply(schema.NameResearchFindings, `{"summary":""}`)
	r := NewResearcher(Card{Name: "r"}, NewModelResearcher(m, "r"), nil)

	_, err := r.HandleRun(context.Background(), RunRequest{Topic: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskFailed))
}

func TestResearcher_EmptyTopicRejected(t *testing.T) {
	_, url := startResearcher(t, func(context.Context, *Task, RunRequest) (state.Contribution, error) {
		t.Fatal("research must not run")
		return state.Contribution{}, nil
	})

	_, err := NewHTTPClient().Run(context.Background(), url, RunRequest{Topic: "  "})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeInvalidParams, rpcErr.Code)
}

func TestResearcher_CancelRunningTask(t *testing.T) {
	started := make(chan string, 1)
	r := NewResearcher(Card{Name: "r"}, func(ctx context.Context, task *Task, _ RunRequest) (state.Contribution, error) {
		started <- task.ID
		<-ctx.Done()
		return state.Contribution{}, ctx.Err()
	}, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := r.HandleRun(context.Background(), RunRequest{Topic: "slow"})
		errc <- err
	}()

	id := <-started
	task, err := r.HandleCancel(context.Background(), CancelRequest{ID: id})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCanceled, task.Status.State)

	require.Error(t, <-errc)
	final, err := r.HandleGet(context.Background(), GetRequest{ID: id})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCanceled, final.Status.State, "cancel is not overwritten by failure")

	_, err = r.HandleCancel(context.Background(), CancelRequest{ID: "missing"})
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestServer_DiscoverAndUnknownMethod(t *testing.T) {
	_, url := startResearcher(t, nil)
	client := NewHTTPClient()

	card, err := client.Discover(context.Background(), url+"/")
	require.NoError(t, err)
	assert.Equal(t, "test-researcher", card.Name)

	err = client.call(context.Background(), url, "research/unknown", struct{}{}, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeMethodNotFound, rpcErr.Code)

	_, err = client.Get(context.Background(), url, GetRequest{ID: "nope"})
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeTaskNotFound, rpcErr.Code)
}

func TestServer_StartReportsBindErrors(t *testing.T) {
	r := NewResearcher(Card{Name: "r"}, nil, nil)
	require.NoError(t, r.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() { _ = r.Stop(context.Background()) })

	addr := r.Server().Addr().String()
	other := NewResearcher(Card{Name: "r2"}, nil, nil)
	assert.Error(t, other.Start(context.Background(), addr))

	card, err := NewHTTPClient().Discover(context.Background(), "http://"+addr)
	require.NoError(t, err)
	assert.Equal(t, "r", card.Name)
}

func TestFindingsContribution_FallsBackToSummary(t *testing.T) {
	c, err := FindingsContribution("id", "r", "topic", schema.ResearchFindings{Summary: "only summary"})
	require.NoError(t, err)
	assert.Equal(t, []string{"only summary"}, c.RawNotes)
	require.NoError(t, state.ValidateMessage(c.Messages[0], 0))
}
