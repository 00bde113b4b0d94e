// Package export renders research sessions as artifacts (a JSON document, a
// Markdown report, a Mermaid stage diagram) and publishes them to a Sink.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/state"
	"github.com/dusk-indust/deepresearch/internal/status"
)

// ErrNoReport is returned when a session has no final report yet.
var ErrNoReport = errors.New("export: session has no final report")

// SessionExport is the top-level JSON export structure.
type SessionExport struct {
	SessionID     string             `json:"sessionId"`
	Phase         checkpoint.Phase   `json:"phase"`
	ExportedAt    string             `json:"exportedAt"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	Question      string             `json:"question,omitempty"`
	Verification  string             `json:"verification,omitempty"`
	Error         string             `json:"error,omitempty"`
	Rounds        int                `json:"rounds"`
	Stages        []status.StageInfo `json:"stages"`
	ResearchBrief string             `json:"researchBrief,omitempty"`
	Topics        []TopicExport      `json:"topics,omitempty"`
	Conversation  []state.Message    `json:"conversation"`
	Notes         []string           `json:"notes,omitempty"`
	RawNotes      []string           `json:"rawNotes,omitempty"`
	FinalReport   string             `json:"finalReport,omitempty"`
}

// TopicExport is one researched topic.
type TopicExport struct {
	ID         string `json:"id"`
	Topic      string `json:"topic"`
	Summary    string `json:"summary"`
	Researcher string `json:"researcher,omitempty"`
}

// ExportSession builds a SessionExport from a checkpoint.
func ExportSession(cp *checkpoint.Checkpoint, now time.Time) *SessionExport {
	snap := cp.State
	out := &SessionExport{
		SessionID:    cp.SessionID,
		Phase:        cp.Phase,
		ExportedAt:   now.UTC().Format(time.RFC3339),
		CreatedAt:    cp.CreatedAt,
		UpdatedAt:    cp.UpdatedAt,
		Question:     cp.Question,
		Verification: cp.Verification,
		Error:        cp.Error,
		Rounds:       cp.Rounds,
		Stages:       status.FromCheckpoint(cp).Stages,
		Topics:       topics(snap.Supervisor),
		Conversation: snap.Conversation,
		Notes:        snap.Notes,
		RawNotes:     snap.RawNotes,
	}
	if snap.ResearchBrief != nil {
		out.ResearchBrief = *snap.ResearchBrief
	}
	if snap.FinalReport != nil {
		out.FinalReport = *snap.FinalReport
	}
	return out
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}

// topics lists the tool messages of the supervisor log. Their content
// starts with a "Topic: " line followed by the summary.
func topics(msgs []state.Message) []TopicExport {
	var out []TopicExport
	for _, m := range msgs {
		if m.Role != state.RoleTool {
			continue
		}
		topic, summary := splitTopic(m.Content)
		out = append(out, TopicExport{ID: m.ID, Topic: topic, Summary: summary, Researcher: m.Name})
	}
	return out
}

func splitTopic(content string) (string, string) {
	first, rest, _ := strings.Cut(content, "\n")
	if topic, ok := strings.CutPrefix(first, "Topic: "); ok {
		return strings.TrimSpace(topic), strings.TrimSpace(rest)
	}
	return "", strings.TrimSpace(content)
}
