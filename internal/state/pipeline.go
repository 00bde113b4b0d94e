package state

import (
	"strings"
	"sync"
)

// InputState is the only payload accepted at session start: the user
// conversation. It carries no accumulator fields, so stages that read it
// cannot depend on state left over from another session.
type InputState struct {
	Messages []Message `json:"messages"`
}

// Contribution is the output of one sub-research task. It is applied to the
// pipeline state as a unit or not at all.
type Contribution struct {
	Messages []Message `json:"messages,omitempty"`
	RawNotes []string  `json:"rawNotes,omitempty"`
}

// Empty reports whether the contribution carries nothing to merge.
func (c Contribution) Empty() bool {
	return len(c.Messages) == 0 && len(c.RawNotes) == 0
}

// PipelineState is the aggregate for one research session. Each field owns
// its lock; there is no global lock. Cross-field ordering is enforced by the
// dependency checks on each mutator.
type PipelineState struct {
	ID string

	Conversation *MessageLog
	Supervisor   *MessageLog
	RawNotes     *TextAccumulator
	Notes        *TextAccumulator

	briefMu sync.RWMutex
	brief   *string

	reportMu sync.RWMutex
	report   *string
}

// NewPipelineState creates an empty state and seeds its conversation log
// from the input boundary. The input messages are validated like any merge.
func NewPipelineState(id string, in InputState) (*PipelineState, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("session id", -1, "empty")
	}
	s := &PipelineState{
		ID:           id,
		Conversation: NewMessageLog(),
		Supervisor:   NewMessageLog(),
		RawNotes:     NewTextAccumulator(),
		Notes:        NewTextAccumulator(),
	}
	if err := s.Conversation.Merge(in.Messages...); err != nil {
		return nil, err
	}
	return s, nil
}

// Input returns the restricted input view of the state.
func (s *PipelineState) Input() InputState {
	return InputState{Messages: s.Conversation.Messages()}
}

// MergeConversation merges messages into the conversation log.
func (s *PipelineState) MergeConversation(msgs ...Message) error {
	return s.Conversation.Merge(msgs...)
}

// ResearchBrief returns the brief and whether it has been set.
func (s *PipelineState) ResearchBrief() (string, bool) {
	s.briefMu.RLock()
	defer s.briefMu.RUnlock()
	if s.brief == nil {
		return "", false
	}
	return *s.brief, true
}

// SetResearchBrief overwrites the research brief. The conversation log must
// already hold at least one message and the brief must not be blank.
func (s *PipelineState) SetResearchBrief(brief string) error {
	if s.Conversation.Len() == 0 {
		return outOfOrder("research_brief", "conversation_log")
	}
	if strings.TrimSpace(brief) == "" {
		return invalid("research_brief", -1, "empty")
	}
	s.briefMu.Lock()
	defer s.briefMu.Unlock()
	s.brief = &brief
	return nil
}

// SeedSupervisor merges the opening messages of the supervisor log. It
// differs from MergeSupervisor only in intent.
func (s *PipelineState) SeedSupervisor(msgs ...Message) error {
	return s.MergeSupervisor(msgs...)
}

// MergeSupervisor merges messages into the supervisor log once the research
// brief exists.
func (s *PipelineState) MergeSupervisor(msgs ...Message) error {
	if _, ok := s.ResearchBrief(); !ok {
		return outOfOrder("supervisor_log", "research_brief")
	}
	return s.Supervisor.Merge(msgs...)
}

// MergeRawNotes appends raw research notes once the research brief exists.
func (s *PipelineState) MergeRawNotes(notes ...string) error {
	if _, ok := s.ResearchBrief(); !ok {
		return outOfOrder("raw_notes", "research_brief")
	}
	s.RawNotes.Merge(notes...)
	return nil
}

// MergeNotes appends distilled notes. Raw notes must have content first.
func (s *PipelineState) MergeNotes(notes ...string) error {
	if s.RawNotes.Len() == 0 {
		return outOfOrder("notes", "raw_notes")
	}
	s.Notes.Merge(notes...)
	return nil
}

// ApplyContribution validates the whole contribution and only then merges it
// into the supervisor log and raw notes.
func (s *PipelineState) ApplyContribution(c Contribution) error {
	if _, ok := s.ResearchBrief(); !ok {
		return outOfOrder("contribution", "research_brief")
	}
	for i, m := range c.Messages {
		if err := ValidateMessage(m, i); err != nil {
			return err
		}
	}
	if err := s.Supervisor.Merge(c.Messages...); err != nil {
		return err
	}
	s.RawNotes.Merge(c.RawNotes...)
	return nil
}

// FinalReport returns the report and whether it has been set.
func (s *PipelineState) FinalReport() (string, bool) {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	if s.report == nil {
		return "", false
	}
	return *s.report, true
}

// SetFinalReport overwrites the final report. Notes must be non-empty.
func (s *PipelineState) SetFinalReport(report string) error {
	if s.Notes.Len() == 0 {
		return outOfOrder("final_report", "notes")
	}
	if strings.TrimSpace(report) == "" {
		return invalid("final_report", -1, "empty")
	}
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	s.report = &report
	return nil
}
