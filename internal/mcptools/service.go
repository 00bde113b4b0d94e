package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/dusk-indust/deepresearch/internal/state"
	"github.com/dusk-indust/deepresearch/internal/status"
)

// ResearchService handles MCP tool calls. It wraps an Orchestrator to run
// sessions and query their checkpoints.
type ResearchService struct {
	pipeline orchestrator.Orchestrator
	logger   *zap.Logger
}

// NewResearchService creates a ResearchService. A nil logger discards logs.
func NewResearchService(pipeline orchestrator.Orchestrator, logger *zap.Logger) *ResearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchService{pipeline: pipeline, logger: logger}
}

// StartResearch runs a new session until it completes, fails, or asks a
// clarifying question.
func (s *ResearchService) StartResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StartResearchInput,
) (*mcp.CallToolResult, ResearchOutcome, error) {
	in, err := inputState(input)
	if err != nil {
		return nil, ResearchOutcome{}, err
	}
	out, err := s.pipeline.Start(ctx, input.SessionID, in)
	return s.outcome(out, err)
}

// ReplyToClarification answers the question a paused session is waiting on.
func (s *ResearchService) ReplyToClarification(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReplyInput,
) (*mcp.CallToolResult, ResearchOutcome, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, ResearchOutcome{}, errors.New("sessionId is required")
	}
	if strings.TrimSpace(input.Reply) == "" {
		return nil, ResearchOutcome{}, errors.New("reply is required")
	}
	out, err := s.pipeline.Resume(ctx, input.SessionID, state.NewMessage(state.RoleUser, input.Reply))
	return s.outcome(out, err)
}

// GetSession reports the stage table of one session.
func (s *ResearchService) GetSession(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetSessionInput,
) (*mcp.CallToolResult, SessionOutput, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, SessionOutput{}, errors.New("sessionId is required")
	}
	cp, err := s.pipeline.Session(ctx, input.SessionID)
	if err != nil {
		return nil, SessionOutput{}, fmt.Errorf("get session %s: %w", input.SessionID, err)
	}

	st := status.FromCheckpoint(cp)
	out := SessionOutput{
		SessionID:       st.SessionID,
		Phase:           string(st.Phase),
		Question:        st.Question,
		Error:           st.Error,
		Rounds:          st.Rounds,
		Topics:          st.Topics,
		Notes:           st.Notes,
		CompletedStages: []int{},
		NextStage:       st.NextStage,
		UpdatedAt:       timestamp(st.UpdatedAt),
	}
	for _, stage := range st.Stages {
		if stage.Complete {
			out.CompletedStages = append(out.CompletedStages, stage.Stage)
		}
	}
	if input.IncludeReport && cp.State.FinalReport != nil {
		out.FinalReport = *cp.State.FinalReport
	}
	return nil, out, nil
}

// ListSessions lists known sessions, most recently updated first.
func (s *ResearchService) ListSessions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	cps, err := s.pipeline.List(ctx)
	if err != nil {
		return nil, ListSessionsOutput{}, fmt.Errorf("list sessions: %w", err)
	}
	if input.Limit > 0 && len(cps) > input.Limit {
		cps = cps[:input.Limit]
	}

	out := ListSessionsOutput{Sessions: make([]SessionSummary, 0, len(cps))}
	for _, st := range status.Summaries(cps) {
		out.Sessions = append(out.Sessions, SessionSummary{
			SessionID: st.SessionID,
			Phase:     string(st.Phase),
			NextStage: st.NextStage,
			UpdatedAt: timestamp(st.UpdatedAt),
		})
	}
	return nil, out, nil
}

// outcome turns a pipeline result into tool output. A failed session is
// reported in the output rather than as a tool error, so the client still
// learns the session ID.
func (s *ResearchService) outcome(out *orchestrator.Outcome, err error) (*mcp.CallToolResult, ResearchOutcome, error) {
	if out == nil {
		if err == nil {
			err = errors.New("pipeline returned no outcome")
		}
		return nil, ResearchOutcome{}, err
	}
	if err != nil {
		s.logger.Warn("research session failed", zap.String("session", out.SessionID), zap.Error(err))
	}
	res := ResearchOutcome{
		SessionID:    out.SessionID,
		Phase:        string(out.Phase),
		Question:     out.Question,
		Verification: out.Verification,
		FinalReport:  out.FinalReport,
		Rounds:       out.Rounds,
		Error:        out.Error,
	}
	if res.Phase == string(checkpoint.PhaseFailed) && res.Error == "" && err != nil {
		res.Error = err.Error()
	}
	return nil, res, nil
}

func inputState(input StartResearchInput) (state.InputState, error) {
	var in state.InputState
	for _, m := range input.Messages {
		in.Messages = append(in.Messages, state.NewMessage(state.Role(strings.ToLower(m.Role)), m.Content))
	}
	if len(in.Messages) == 0 {
		if strings.TrimSpace(input.Query) == "" {
			return state.InputState{}, errors.New("query or messages is required")
		}
		in.Messages = []state.Message{state.NewMessage(state.RoleUser, input.Query)}
	}
	return in, nil
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
