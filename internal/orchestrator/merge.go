package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// MergeStrategy defines how report sections are combined.
type MergeStrategy string

const (
	// MergeConcatenate joins sections in plan order.
	MergeConcatenate MergeStrategy = "concatenate"
)

// MergePlan describes how to assemble a document from named sections.
type MergePlan struct {
	Strategy     MergeStrategy
	SectionOrder []string
}

// Section is a named chunk of report text.
type Section struct {
	Name    string
	Content string
	Agent   string // researcher that produced the section, if any
}

// ReportMergePlan is the layout of a final report: the model-written
// summary followed by per-topic findings.
var ReportMergePlan = MergePlan{
	Strategy:     MergeConcatenate,
	SectionOrder: []string{"summary", "findings"},
}

// ReportSeparator separates merged report sections.
const ReportSeparator = "\n\n---\n\n"

// Merger combines sections according to a MergePlan.
type Merger struct {
	plan MergePlan
}

// NewMerger creates a Merger for plan.
func NewMerger(plan MergePlan) *Merger {
	return &Merger{plan: plan}
}

// Merge orders sections by the plan and joins them with ReportSeparator.
// Every planned section must be present exactly once; sections the plan does
// not name are appended in input order. Blank sections are skipped.
func (m *Merger) Merge(sections []Section) (string, error) {
	byName := make(map[string]Section, len(sections))
	var dups []string
	for _, sec := range sections {
		if _, ok := byName[sec.Name]; ok {
			dups = append(dups, sec.Name)
			continue
		}
		byName[sec.Name] = sec
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return "", fmt.Errorf("merge: duplicate section names: %s", strings.Join(dups, ", "))
	}

	planned := make(map[string]bool, len(m.plan.SectionOrder))
	var missing []string
	for _, name := range m.plan.SectionOrder {
		planned[name] = true
		if _, ok := byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("merge: missing sections required by plan: %s", strings.Join(missing, ", "))
	}

	parts := make([]string, 0, len(sections))
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	for _, name := range m.plan.SectionOrder {
		add(byName[name].Content)
	}
	for _, sec := range sections {
		if !planned[sec.Name] {
			add(sec.Content)
		}
	}
	return strings.Join(parts, ReportSeparator), nil
}
