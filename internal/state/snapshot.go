package state

// Snapshot is a serialisable copy of a PipelineState, used for checkpoints
// that may be resumed by a different process.
type Snapshot struct {
	ID            string    `json:"id"`
	Conversation  []Message `json:"conversation"`
	ResearchBrief *string   `json:"researchBrief,omitempty"`
	Supervisor    []Message `json:"supervisor,omitempty"`
	RawNotes      []string  `json:"rawNotes,omitempty"`
	Notes         []string  `json:"notes,omitempty"`
	FinalReport   *string   `json:"finalReport,omitempty"`
}

// Snapshot copies the current state. Fields are read one at a time, so a
// snapshot taken while merges are in flight reflects each field at the moment
// it was read.
func (s *PipelineState) Snapshot() Snapshot {
	snap := Snapshot{
		ID:           s.ID,
		Conversation: s.Conversation.Messages(),
		Supervisor:   s.Supervisor.Messages(),
		RawNotes:     s.RawNotes.Items(),
		Notes:        s.Notes.Items(),
	}
	if brief, ok := s.ResearchBrief(); ok {
		snap.ResearchBrief = &brief
	}
	if report, ok := s.FinalReport(); ok {
		snap.FinalReport = &report
	}
	return snap
}

// Restore rebuilds a PipelineState from a snapshot, replaying the fields in
// dependency order so a snapshot that breaks the ordering invariant is
// rejected.
func Restore(snap Snapshot) (*PipelineState, error) {
	s, err := NewPipelineState(snap.ID, InputState{Messages: snap.Conversation})
	if err != nil {
		return nil, err
	}
	if snap.ResearchBrief != nil {
		if err := s.SetResearchBrief(*snap.ResearchBrief); err != nil {
			return nil, err
		}
	}
	if len(snap.Supervisor) > 0 {
		if err := s.MergeSupervisor(snap.Supervisor...); err != nil {
			return nil, err
		}
	}
	if len(snap.RawNotes) > 0 {
		if err := s.MergeRawNotes(snap.RawNotes...); err != nil {
			return nil, err
		}
	}
	if len(snap.Notes) > 0 {
		if err := s.MergeNotes(snap.Notes...); err != nil {
			return nil, err
		}
	}
	if snap.FinalReport != nil {
		if err := s.SetFinalReport(*snap.FinalReport); err != nil {
			return nil, err
		}
	}
	return s, nil
}
