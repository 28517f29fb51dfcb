package markers

import (
	"regexp"
	"strings"
)

// teamTaskBarePattern catches a dangling [TEAM_TASK] header whose block was
// malformed (no [NEXT_SECTION] terminator), plus the terminator itself.
var (
	teamTaskBarePattern   = regexp.MustCompile(`\[TEAM_TASK[^\]]*\]`)
	nextSectionPattern    = regexp.MustCompile(`\[NEXT_SECTION\]`)
	intraLineSpacePattern = regexp.MustCompile(`[ \t]+`)
)

// StripAll removes every marker from content — NEXT, DROP, FROM and all
// TEAM_TASK forms — and normalizes whitespace. Used when building agent
// context so models never see routing syntax.
func StripAll(content string) string {
	s := content
	s = teamTaskBlockPattern.ReplaceAllString(s, "")
	s = nextPattern.ReplaceAllString(s, "")
	s = dropPattern.ReplaceAllString(s, "")
	s = fromPattern.ReplaceAllString(s, "")
	s = teamTaskInlinePattern.ReplaceAllString(s, "")
	s = teamTaskBarePattern.ReplaceAllString(s, "")
	s = nextSectionPattern.ReplaceAllString(s, "")
	return cleanWhitespace(s)
}

// cleanWhitespace collapses runs of intra-line spaces to one space and drops
// empty lines. Newlines between non-empty lines are preserved.
func cleanWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(intraLineSpacePattern.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
