package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerger_PlanOrderThenExtras(t *testing.T) {
	m := NewMerger(ReportMergePlan)
	out, err := m.Merge([]Section{
		{Name: "appendix", Content: "extra"},
		{Name: "findings", Content: "## Findings"},
		{Name: "summary", Content: "# Report\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Report"+ReportSeparator+"## Findings"+ReportSeparator+"extra", out)
}

func TestMerger_MissingSection(t *testing.T) {
	_, err := NewMerger(ReportMergePlan).Merge([]Section{{Name: "summary", Content: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "findings")
}

func TestMerger_DuplicateSection(t *testing.T) {
	_, err := NewMerger(ReportMergePlan).Merge([]Section{
		{Name: "summary", Content: "x"},
		{Name: "summary", Content: "y"},
		{Name: "findings", Content: "z"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestMerger_SkipsBlankSections(t *testing.T) {
	out, err := NewMerger(ReportMergePlan).Merge([]Section{
		{Name: "summary", Content: "x"},
		{Name: "findings", Content: "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}
