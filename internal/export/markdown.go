package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
)

// Markdown renders the final report of a session as a standalone Markdown
// document with a short provenance header.
func Markdown(cp *checkpoint.Checkpoint) (string, error) {
	if cp.State.FinalReport == nil {
		return "", fmt.Errorf("%w: %s (phase %s)", ErrNoReport, cp.SessionID, cp.Phase)
	}

	var b strings.Builder
	b.WriteString("<!--\n")
	fmt.Fprintf(&b, "session: %s\n", cp.SessionID)
	if cp.State.ResearchBrief != nil {
		fmt.Fprintf(&b, "brief: %s\n", strings.ReplaceAll(*cp.State.ResearchBrief, "--", "- -"))
	}
	fmt.Fprintf(&b, "rounds: %d\n", cp.Rounds)
	fmt.Fprintf(&b, "notes: %d\n", len(cp.State.Notes))
	if !cp.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "updated: %s\n", cp.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	b.WriteString("-->\n\n")
	b.WriteString(strings.TrimSpace(*cp.State.FinalReport))
	b.WriteString("\n")
	return b.String(), nil
}
