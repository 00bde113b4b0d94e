package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Name identifies a structured-output contract requested from the model layer.
type Name string

const (
	NameClarifyWithUser  Name = "clarify_with_user"
	NameResearchQuestion Name = "research_question"
	NameResearchPlan     Name = "research_plan"
	NameResearchFindings Name = "research_findings"
	NameFinalReport      Name = "final_report"
)

// ErrInvalidDecision marks a model response that does not satisfy its schema.
var ErrInvalidDecision = errors.New("schema: invalid decision")

// DecisionError reports why a model response was rejected.
type DecisionError struct {
	Schema Name
	Reason string
}

// Error implements the error interface.
func (e *DecisionError) Error() string {
	return fmt.Sprintf("schema: invalid %s: %s", e.Schema, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidDecision.
func (e *DecisionError) Unwrap() error { return ErrInvalidDecision }

// ClarifyWithUser is the clarification gate decision. Question and
// Verification are both required even though only one is used downstream.
type ClarifyWithUser struct {
	NeedClarification bool   `json:"need_clarification" jsonschema:"Whether the user needs to be asked a clarifying question."`
	Question          string `json:"question" jsonschema:"A question to ask the user to clarify the report scope."`
	Verification      string `json:"verification" jsonschema:"Acknowledgement that research will start with the information provided."`
}

// ResearchQuestion carries the research brief extracted from the conversation.
type ResearchQuestion struct {
	ResearchBrief string `json:"research_brief" jsonschema:"A research question that will be used to guide the research."`
}

// ResearchPlan is one supervisor round: the topics to delegate next, or
// Complete when the supervisor considers the research sufficient.
type ResearchPlan struct {
	Topics    []string `json:"topics" jsonschema:"Self-contained sub-research topics to delegate in parallel."`
	Complete  bool     `json:"complete" jsonschema:"True when the collected findings are sufficient to write the report."`
	Rationale string   `json:"rationale,omitempty" jsonschema:"Why these topics were chosen."`
}

// ResearchFindings is the output of one sub-research task.
type ResearchFindings struct {
	Summary string   `json:"summary" jsonschema:"Compressed summary of what was found."`
	Notes   []string `json:"notes" jsonschema:"Raw findings, one per entry, with sources where available."`
}

// FinalReport is the body of the final report.
type FinalReport struct {
	Report string `json:"report" jsonschema:"The final research report in markdown."`
}

var (
	resolvedMu sync.Mutex
	resolved   = map[Name]*jsonschema.Resolved{}
	schemas    = map[Name]*jsonschema.Schema{}
)

// For returns the JSON Schema for a named contract.
func For(name Name) (*jsonschema.Schema, error) {
	_, s, err := lookup(name)
	return s, err
}

func lookup(name Name) (*jsonschema.Resolved, *jsonschema.Schema, error) {
	resolvedMu.Lock()
	defer resolvedMu.Unlock()

	if r, ok := resolved[name]; ok {
		return r, schemas[name], nil
	}

	var (
		s   *jsonschema.Schema
		err error
	)
	switch name {
	case NameClarifyWithUser:
		s, err = jsonschema.For[ClarifyWithUser](nil)
	case NameResearchQuestion:
		s, err = jsonschema.For[ResearchQuestion](nil)
	case NameResearchPlan:
		s, err = jsonschema.For[ResearchPlan](nil)
	case NameResearchFindings:
		s, err = jsonschema.For[ResearchFindings](nil)
	case NameFinalReport:
		s, err = jsonschema.For[FinalReport](nil)
	default:
		return nil, nil, fmt.Errorf("schema: unknown schema %q", name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("schema: infer %s: %w", name, err)
	}
	// Models sometimes add keys of their own; only missing or mistyped keys
	// are fatal.
	s.AdditionalProperties = nil

	r, err := s.Resolve(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: resolve %s: %w", name, err)
	}
	resolved[name] = r
	schemas[name] = s
	return r, s, nil
}

// decode validates raw against the named schema and then unmarshals it into
// out. It fails closed: absent required keys, wrong types, and non-object
// payloads are all errors.
func decode(name Name, raw json.RawMessage, out any) error {
	raw = json.RawMessage(stripFence(string(raw)))
	if len(raw) == 0 {
		return &DecisionError{Schema: name, Reason: "empty response"}
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return &DecisionError{Schema: name, Reason: "not JSON: " + err.Error()}
	}
	if _, ok := instance.(map[string]any); !ok {
		return &DecisionError{Schema: name, Reason: "expected a JSON object"}
	}

	r, _, err := lookup(name)
	if err != nil {
		return err
	}
	if err := r.Validate(instance); err != nil {
		return &DecisionError{Schema: name, Reason: err.Error()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecisionError{Schema: name, Reason: err.Error()}
	}
	return nil
}

// stripFence removes a surrounding ```json fence some models wrap around
// structured output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
