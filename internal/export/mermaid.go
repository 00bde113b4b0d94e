package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/status"
)

// GenerateMermaid produces a Mermaid flowchart of a session: the four stages
// left to right, styled by completion, with each researched topic hanging
// off the supervise stage.
func GenerateMermaid(cp *checkpoint.Checkpoint) string {
	st := status.FromCheckpoint(cp)

	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("  classDef done fill:#d4edda,stroke:#28a745\n")
	sb.WriteString("  classDef current fill:#fff3cd,stroke:#ffc107\n")
	sb.WriteString("  classDef failed fill:#f8d7da,stroke:#dc3545\n")

	for _, s := range st.Stages {
		fmt.Fprintf(&sb, "  S%d[\"%s\"]\n", s.Stage, label(s.Name))
	}
	for i := 1; i < len(st.Stages); i++ {
		fmt.Fprintf(&sb, "  S%d --> S%d\n", st.Stages[i-1].Stage, st.Stages[i].Stage)
	}

	for i, t := range topics(cp.State.Supervisor) {
		name := t.Topic
		if name == "" {
			name = t.ID
		}
		fmt.Fprintf(&sb, "  S2 -.-> T%d([\"%.40s\"])\n", i+1, label(name))
	}

	for _, s := range st.Stages {
		switch {
		case s.Complete:
			fmt.Fprintf(&sb, "  class S%d done\n", s.Stage)
		case cp.Phase == checkpoint.PhaseFailed && s.Stage == st.NextStage:
			fmt.Fprintf(&sb, "  class S%d failed\n", s.Stage)
		case s.Current:
			fmt.Fprintf(&sb, "  class S%d current\n", s.Stage)
		}
	}
	return sb.String()
}

// label makes s safe inside a quoted Mermaid label.
func label(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	return strings.Join(strings.Fields(s), " ")
}
