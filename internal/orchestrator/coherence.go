package orchestrator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CoherenceIssue is a contradiction between two topics' findings.
type CoherenceIssue struct {
	SectionA    string
	SectionB    string
	Description string
}

// codeBlockRe matches fenced code blocks.
var codeBlockRe = regexp.MustCompile("(?s)```.*?```")

// versionRe matches a name followed by a version, such as "Go 1.22",
// "PostgreSQL 16.2" or "node v20.x".
var versionRe = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9_.-]*)\s+v?(\d+\.\d+(?:\.\d+)?(?:\.x)?)\b`)

// CheckCoherence scans per-topic findings for the same product cited with
// different versions. It never blocks a report; callers log the issues.
// Issues are ordered by product name and then by version.
func CheckCoherence(sections []Section) []CoherenceIssue {
	// name -> version -> sections citing it, in input order
	cited := make(map[string]map[string][]string)

	for _, sec := range sections {
		text := codeBlockRe.ReplaceAllString(sec.Content, "")
		seen := make(map[string]bool)
		for _, m := range versionRe.FindAllStringSubmatch(text, -1) {
			name, version := strings.ToLower(m[1]), m[2]
			if seen[name+"@"+version] {
				continue
			}
			seen[name+"@"+version] = true
			if cited[name] == nil {
				cited[name] = make(map[string][]string)
			}
			cited[name][version] = append(cited[name][version], sec.Name)
		}
	}

	names := make([]string, 0, len(cited))
	for name, versions := range cited {
		if len(versions) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var issues []CoherenceIssue
	for _, name := range names {
		versions := make([]string, 0, len(cited[name]))
		for v := range cited[name] {
			versions = append(versions, v)
		}
		sort.Strings(versions)

		for i := 0; i < len(versions); i++ {
			for j := i + 1; j < len(versions); j++ {
				a, b := cited[name][versions[i]], cited[name][versions[j]]
				issues = append(issues, CoherenceIssue{
					SectionA: a[0],
					SectionB: b[0],
					Description: fmt.Sprintf("%q cited as %s (in %s) and %s (in %s)",
						name, versions[i], strings.Join(a, ", "), versions[j], strings.Join(b, ", ")),
				})
			}
		}
	}
	return issues
}
