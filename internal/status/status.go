// Package status derives a per-stage view of a research session from its
// checkpoint.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// StageInfo describes the completion state of a single stage.
type StageInfo struct {
	Stage    int    `json:"stage"`
	Name     string `json:"name"` // human-readable label
	Slug     string `json:"slug"` // stage name as used in progress events
	Complete bool   `json:"complete"`
	Current  bool   `json:"current"`
}

// SessionStatus holds the status of one research session.
type SessionStatus struct {
	SessionID string           `json:"sessionId"`
	Phase     checkpoint.Phase `json:"phase"`
	Question  string           `json:"question,omitempty"`
	Error     string           `json:"error,omitempty"`
	Rounds    int              `json:"rounds"`
	Topics    int              `json:"topics"`
	RawNotes  int              `json:"rawNotes"`
	Notes     int              `json:"notes"`
	HasReport bool             `json:"hasReport"`
	Stages    []StageInfo      `json:"stages"`
	NextStage int              `json:"nextStage"` // -1 if all complete
	UpdatedAt time.Time        `json:"updatedAt"`
}

var stageLabels = [...]string{
	"Clarify with user",
	"Write research brief",
	"Supervise research",
	"Write final report",
}

// FromCheckpoint builds the status of a session. A stage counts as complete
// when the state it produces is present, or when the session has moved to a
// phase that only follows it.
func FromCheckpoint(cp *checkpoint.Checkpoint) SessionStatus {
	snap := cp.State
	past := func(phases ...checkpoint.Phase) bool {
		for _, p := range phases {
			if cp.Phase == p {
				return true
			}
		}
		return false
	}

	done := []bool{
		snap.ResearchBrief != nil || past(checkpoint.PhaseResearching, checkpoint.PhaseReducing, checkpoint.PhaseCompleted),
		snap.ResearchBrief != nil,
		len(snap.Notes) > 0 || snap.FinalReport != nil || past(checkpoint.PhaseReducing, checkpoint.PhaseCompleted),
		snap.FinalReport != nil,
	}

	var completed []int
	for i, ok := range done {
		if ok {
			completed = append(completed, i)
		}
	}
	next := NextStage(completed)

	st := SessionStatus{
		SessionID: cp.SessionID,
		Phase:     cp.Phase,
		Question:  cp.Question,
		Error:     cp.Error,
		Rounds:    cp.Rounds,
		Topics:    countRole(snap.Supervisor, state.RoleTool),
		RawNotes:  len(snap.RawNotes),
		Notes:     len(snap.Notes),
		HasReport: snap.FinalReport != nil,
		NextStage: next,
		UpdatedAt: cp.UpdatedAt,
	}
	for _, s := range orchestrator.Stages() {
		i := int(s)
		st.Stages = append(st.Stages, StageInfo{
			Stage:    i,
			Name:     stageLabels[i],
			Slug:     s.String(),
			Complete: done[i],
			Current:  i == next && !cp.Phase.IsTerminal(),
		})
	}
	return st
}

// NextStage returns the first stage not in completed, in execution order.
// Returns -1 if all stages are complete.
func NextStage(completed []int) int {
	set := make(map[int]bool, len(completed))
	for _, s := range completed {
		set[s] = true
	}
	for _, s := range orchestrator.Stages() {
		if !set[int(s)] {
			return int(s)
		}
	}
	return -1
}

// Summaries builds the status of every checkpoint, keeping their order.
func Summaries(cps []checkpoint.Checkpoint) []SessionStatus {
	out := make([]SessionStatus, len(cps))
	for i := range cps {
		out[i] = FromCheckpoint(&cps[i])
	}
	return out
}

// Format renders a status as a short text table.
func Format(st SessionStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%s)\n", st.SessionID, st.Phase)
	for _, s := range st.Stages {
		mark := " "
		switch {
		case s.Complete:
			mark = "x"
		case s.Current:
			mark = ">"
		}
		fmt.Fprintf(&b, "  [%s] %d %s\n", mark, s.Stage, s.Name)
	}
	fmt.Fprintf(&b, "  rounds=%d topics=%d raw_notes=%d notes=%d\n", st.Rounds, st.Topics, st.RawNotes, st.Notes)
	if st.Question != "" {
		fmt.Fprintf(&b, "  waiting on: %s\n", st.Question)
	}
	if st.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", st.Error)
	}
	return b.String()
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
