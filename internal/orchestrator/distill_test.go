package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistill(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{name: "empty", raw: nil, want: []string{}},
		{name: "keeps order", raw: []string{"b", "a"}, want: []string{"b", "a"}},
		{name: "exact duplicates", raw: []string{"a", "b", "a"}, want: []string{"a", "b"}},
		{
			name: "whitespace and case",
			raw:  []string{"Lithium  prices fell", " lithium prices FELL ", "cobalt"},
			want: []string{"Lithium  prices fell", "cobalt"},
		},
		{name: "blank dropped", raw: []string{"", "  ", "\n", "x"}, want: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distill(tt.raw))
		})
	}
}
