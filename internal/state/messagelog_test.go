package state

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, role Role, content string) Message {
	return Message{ID: id, Role: role, Content: content}
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMergeMessages_SameIdentityUpdatesInPlace(t *testing.T) {
	existing := []Message{
		msg("a", RoleUser, "first"),
		msg("b", RoleAssistant, "second"),
		msg("c", RoleUser, "third"),
	}

	merged, err := MergeMessages(existing, []Message{msg("b", RoleTool, "second, revised")})
	require.NoError(t, err)

	require.Len(t, merged, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(merged))
	assert.Equal(t, "second, revised", merged[1].Content)
	assert.Equal(t, RoleTool, merged[1].Role)

	// The input slice is not modified.
	assert.Equal(t, "second", existing[1].Content)
}

func TestMergeMessages_NewIdentitiesAppendInOrder(t *testing.T) {
	existing := []Message{msg("a", RoleUser, "hi")}
	incoming := []Message{
		msg("x", RoleAssistant, "1"),
		msg("y", RoleTool, "2"),
		msg("z", RoleUser, "3"),
	}

	merged, err := MergeMessages(existing, incoming)
	require.NoError(t, err)
	assert.Len(t, merged, len(existing)+len(incoming))
	assert.Equal(t, []string{"a", "x", "y", "z"}, ids(merged))
}

func TestMergeMessages_Idempotent(t *testing.T) {
	incoming := []Message{msg("a", RoleUser, "hi"), msg("b", RoleAssistant, "hello")}

	once, err := MergeMessages(nil, incoming)
	require.NoError(t, err)
	twice, err := MergeMessages(once, incoming)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestMergeMessages_RepeatedIdentityWithinBatch(t *testing.T) {
	merged, err := MergeMessages(nil, []Message{
		msg("a", RoleUser, "draft"),
		msg("b", RoleUser, "other"),
		msg("a", RoleUser, "final"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(merged))
	assert.Equal(t, "final", merged[0].Content)
}

func TestMergeMessages_RejectsMalformedBatch(t *testing.T) {
	existing := []Message{msg("a", RoleUser, "hi")}

	tests := []struct {
		name string
		in   Message
	}{
		{"empty id", msg("", RoleUser, "x")},
		{"blank id", msg("   ", RoleUser, "x")},
		{"unknown role", msg("r", Role("robot"), "x")},
		{"bad payload", Message{ID: "p", Role: RoleTool, Data: json.RawMessage(`{bad`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := MergeMessages(existing, []Message{msg("ok", RoleUser, "fine"), tt.in})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, 1, verr.Index)

			// Nothing from the batch was applied.
			assert.Equal(t, existing, merged)
		})
	}
}

func TestMergeMessages_StructuredPayloadCopied(t *testing.T) {
	payload := json.RawMessage(`{"k":"v"}`)
	merged, err := MergeMessages(nil, []Message{{ID: "a", Role: RoleTool, Data: payload}})
	require.NoError(t, err)

	payload[2] = 'X'
	assert.JSONEq(t, `{"k":"v"}`, string(merged[0].Data))
}

func TestMessageLog_MergeErrorLeavesLogUntouched(t *testing.T) {
	log := NewMessageLog()
	require.NoError(t, log.Merge(msg("a", RoleUser, "hi")))

	err := log.Merge(msg("b", RoleUser, "ok"), msg("", RoleUser, "bad"))
	require.Error(t, err)
	assert.Equal(t, 1, log.Len())

	last, ok := log.Last()
	require.True(t, ok)
	assert.Equal(t, "a", last.ID)
}

func TestMessageLog_GetAndCopies(t *testing.T) {
	log := NewMessageLog()
	require.NoError(t, log.Merge(msg("a", RoleUser, "hi")))

	got, ok := log.Get("a")
	require.True(t, ok)
	assert.Equal(t, "hi", got.Content)

	_, ok = log.Get("missing")
	assert.False(t, ok)

	msgs := log.Messages()
	msgs[0].Content = "mutated"
	again, _ := log.Get("a")
	assert.Equal(t, "hi", again.Content)
}

func TestMessageLog_ConcurrentDistinctContributions(t *testing.T) {
	// Two contributions with distinct identities, applied in either order,
	// each appear exactly once in the order the merges were applied.
	a := msg("msgA", RoleTool, "from A")
	b := msg("msgB", RoleTool, "from B")

	for _, order := range [][]Message{{a, b}, {b, a}} {
		log := NewMessageLog()
		for _, m := range order {
			require.NoError(t, log.Merge(m))
		}
		assert.Equal(t, ids(order), ids(log.Messages()))
	}

	log := NewMessageLog()
	var wg sync.WaitGroup
	for _, m := range []Message{a, b} {
		wg.Add(1)
		go func(m Message) {
			defer wg.Done()
			assert.NoError(t, log.Merge(m))
		}(m)
	}
	wg.Wait()

	got := ids(log.Messages())
	assert.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"msgA", "msgB"}, got)
}

func TestMessageLog_ConcurrentMergesNoLoss(t *testing.T) {
	log := NewMessageLog()
	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				m := NewMessage(RoleTool, "note")
				assert.NoError(t, log.Merge(m))
				// Re-merging the same identity must not grow the log.
				assert.NoError(t, log.Merge(m))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, log.Len())
}
