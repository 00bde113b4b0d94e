package schema

import (
	"encoding/json"
	"strings"
)

// DecodeClarification validates and decodes a clarification gate decision.
// The question is additionally required to be non-blank when
// need_clarification is true, since it is what the user is shown.
func DecodeClarification(raw json.RawMessage) (ClarifyWithUser, error) {
	var out ClarifyWithUser
	if err := decode(NameClarifyWithUser, raw, &out); err != nil {
		return ClarifyWithUser{}, err
	}
	if out.NeedClarification && strings.TrimSpace(out.Question) == "" {
		return ClarifyWithUser{}, &DecisionError{Schema: NameClarifyWithUser, Reason: "need_clarification is true but question is blank"}
	}
	return out, nil
}

// DecodeResearchQuestion validates and decodes the brief extraction result.
// A blank brief is rejected.
func DecodeResearchQuestion(raw json.RawMessage) (ResearchQuestion, error) {
	var out ResearchQuestion
	if err := decode(NameResearchQuestion, raw, &out); err != nil {
		return ResearchQuestion{}, err
	}
	out.ResearchBrief = strings.TrimSpace(out.ResearchBrief)
	if out.ResearchBrief == "" {
		return ResearchQuestion{}, &DecisionError{Schema: NameResearchQuestion, Reason: "research_brief is empty"}
	}
	return out, nil
}

// DecodeResearchPlan validates a supervisor round. Blank topics are dropped;
// a plan with no topics must declare itself complete.
func DecodeResearchPlan(raw json.RawMessage) (ResearchPlan, error) {
	var out ResearchPlan
	if err := decode(NameResearchPlan, raw, &out); err != nil {
		return ResearchPlan{}, err
	}
	topics := out.Topics[:0]
	for _, t := range out.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	out.Topics = topics
	if len(out.Topics) == 0 && !out.Complete {
		return ResearchPlan{}, &DecisionError{Schema: NameResearchPlan, Reason: "no topics and not complete"}
	}
	return out, nil
}

// DecodeResearchFindings validates a sub-research result. At least one of
// summary or notes must carry text.
func DecodeResearchFindings(raw json.RawMessage) (ResearchFindings, error) {
	var out ResearchFindings
	if err := decode(NameResearchFindings, raw, &out); err != nil {
		return ResearchFindings{}, err
	}
	notes := out.Notes[:0]
	for _, n := range out.Notes {
		if strings.TrimSpace(n) != "" {
			notes = append(notes, n)
		}
	}
	out.Notes = notes
	if strings.TrimSpace(out.Summary) == "" && len(out.Notes) == 0 {
		return ResearchFindings{}, &DecisionError{Schema: NameResearchFindings, Reason: "no summary and no notes"}
	}
	return out, nil
}

// DecodeFinalReport validates the final report body.
func DecodeFinalReport(raw json.RawMessage) (FinalReport, error) {
	var out FinalReport
	if err := decode(NameFinalReport, raw, &out); err != nil {
		return FinalReport{}, err
	}
	if strings.TrimSpace(out.Report) == "" {
		return FinalReport{}, &DecisionError{Schema: NameFinalReport, Reason: "report is empty"}
	}
	return out, nil
}
