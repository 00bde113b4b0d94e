package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCoherence(t *testing.T) {
	tests := []struct {
		name     string
		sections []Section
		want     int
	}{
		{
			name: "matching versions",
			sections: []Section{
				{Name: "runtime", Content: "Services run on Go 1.22 today."},
				{Name: "tooling", Content: "The linter targets Go 1.22."},
			},
		},
		{
			name: "conflict",
			sections: []Section{
				{Name: "runtime", Content: "Services run on Go 1.22 today."},
				{Name: "tooling", Content: "The linter targets Go 1.21."},
			},
			want: 1,
		},
		{
			name: "version inside code block",
			sections: []Section{
				{Name: "runtime", Content: "Services run on Go 1.22 today."},
				{Name: "tooling", Content: "Example:\n```\ninstall Go 1.19\n```"},
			},
		},
		{
			name: "repeated mention in one topic",
			sections: []Section{
				{Name: "runtime", Content: "Go 1.22 here and Go 1.22 there."},
			},
		},
		{
			name: "three versions",
			sections: []Section{
				{Name: "a", Content: "PostgreSQL 14.1"},
				{Name: "b", Content: "PostgreSQL 15.2"},
				{Name: "c", Content: "postgresql 16.0"},
			},
			want: 3,
		},
		{name: "no sections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, CheckCoherence(tt.sections), tt.want)
		})
	}
}

func TestCheckCoherence_DescribesConflict(t *testing.T) {
	issues := CheckCoherence([]Section{
		{Name: "runtime", Content: "Go 1.22"},
		{Name: "tooling", Content: "Go 1.21"},
	})
	require.Len(t, issues, 1)
	assert.Equal(t, "tooling", issues[0].SectionA, "versions are ordered, 1.21 first")
	assert.Equal(t, "runtime", issues[0].SectionB)
	assert.Contains(t, issues[0].Description, `"go"`)
}
