package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/schema"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// Static is a deterministic offline model. It never asks for clarification,
// uses the user turns as the research brief, plans a single topic and then
// declares the research complete, and writes the report from the notes it is
// given. It lets the whole pipeline run without network access.
type Static struct{}

// NewStatic returns a Static model.
func NewStatic() *Static { return &Static{} }

// Generate answers req deterministically.
func (s *Static) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Schema {
	case schema.NameClarifyWithUser:
		return encode(schema.ClarifyWithUser{
			Verification: "Thanks. I have what I need and will start researching: " + lastUserTurn(req.Messages),
		}), nil

	case schema.NameResearchQuestion:
		return encode(schema.ResearchQuestion{ResearchBrief: userTurns(req.Messages)}), nil

	case schema.NameResearchPlan:
		if countRole(req.Messages, state.RoleTool) > 0 {
			return encode(schema.ResearchPlan{Topics: []string{}, Complete: true}), nil
		}
		topic := strings.TrimSpace(req.Input)
		if topic == "" {
			topic = userTurns(req.Messages)
		}
		return encode(schema.ResearchPlan{
			Topics:    []string{topic},
			Rationale: "single pass over the research brief",
		}), nil

	case schema.NameResearchFindings:
		topic := strings.TrimSpace(req.Input)
		return encode(schema.ResearchFindings{
			Summary: "Findings on " + topic,
			Notes:   []string{topic},
		}), nil

	case schema.NameFinalReport:
		var b strings.Builder
		b.WriteString("# Research Report\n\n")
		for _, line := range strings.Split(strings.TrimSpace(req.Input), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				b.WriteString("- ")
				b.WriteString(strings.TrimPrefix(line, "- "))
				b.WriteString("\n")
			}
		}
		return encode(schema.FinalReport{Report: b.String()}), nil

	default:
		return nil, fmt.Errorf("model: static model has no answer for %s", req.Schema)
	}
}

func userTurns(msgs []state.Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == state.RoleUser && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, strings.TrimSpace(m.Content))
		}
	}
	return strings.Join(parts, " ")
}

func lastUserTurn(msgs []state.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == state.RoleUser {
			return strings.TrimSpace(msgs[i].Content)
		}
	}
	return ""
}

func countRole(msgs []state.Message, role state.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}
