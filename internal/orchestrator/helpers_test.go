package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/deepresearch/internal/schema"
	"github.com/dusk-indust/deepresearch/internal/state"
	"github.com/dusk-indust/deepresearch/internal/worker"
)

// researcherFunc adapts a function to Researcher.
type researcherFunc func(ctx context.Context, task ResearchTask) (state.Contribution, error)

func (f researcherFunc) Research(ctx context.Context, task ResearchTask) (state.Contribution, error) {
	return f(ctx, task)
}

// findingsResearcher returns one summary and one note per topic. Topics
// containing "fail" return an error.
func findingsResearcher() researcherFunc {
	return func(_ context.Context, task ResearchTask) (state.Contribution, error) {
		if strings.Contains(task.Topic, "fail") {
			return state.Contribution{}, errors.New("search backend unavailable")
		}
		return worker.FindingsContribution(task.ID, "test", task.Topic, schema.ResearchFindings{
			Summary: "About " + task.Topic,
			Notes:   []string{"note on " + task.Topic},
		})
	}
}

// newSession builds a session whose state already has a brief, as if the
// clarify and brief stages had run.
func newSession(t *testing.T, withBrief bool) *Session {
	t.Helper()
	st, err := state.NewPipelineState("s1", state.InputState{Messages: []state.Message{state.UserMessage("research EV batteries")}})
	require.NoError(t, err)
	if withBrief {
		require.NoError(t, st.SetResearchBrief("EV batteries"))
		require.NoError(t, st.SeedSupervisor(state.Message{ID: briefMessageID("s1"), Role: state.RoleUser, Content: "EV batteries"}))
	}
	return &Session{ID: "s1", State: st}
}
