package orchestrator

import "strings"

// Distill reduces raw notes to notes. Two raw notes are the same note when
// they match after trimming, collapsing internal whitespace and case
// folding. The first occurrence is kept verbatim (trimmed), order is
// preserved and blank notes are dropped.
func Distill(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, note := range raw {
		key := normalizeNote(note)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(note))
	}
	return out
}

func normalizeNote(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
