// Package markers extracts routing markers from conversation messages.
//
// Recognized markers:
//
//	[NEXT: name!P1, other]   route the conversation to one or more members
//	[DROP: ALL] / [DROP: a]  queue cleanup directive
//	[FROM: ident]            informational sender annotation (kept in content)
//	[TEAM_TASK: inline]      set the shared team task
//	[TEAM_TASK]\n...\n\n[NEXT_SECTION]   block form of the same
package markers

import (
	"regexp"
	"strings"
)

// Addressee is one parsed [NEXT:] target with its routing intent.
type Addressee struct {
	Name   string
	Intent Intent
}

// Parsed is the result of extracting markers from one message.
type Parsed struct {
	// CleanContent has NEXT/DROP (and the consumed TEAM_TASK) removed.
	// FROM and earlier TEAM_TASK occurrences stay for audit.
	CleanContent string

	Addressees       []string
	ParsedAddressees []Addressee
	RawNextMarkers   []string

	DropAll     bool
	DropTargets []string

	FromMember string

	// TeamTask is the value of the last TEAM_TASK marker, nil when absent.
	TeamTask *string
}

var (
	nextPattern           = regexp.MustCompile(`\[NEXT:\s*([^\]]+)\]`)
	dropPattern           = regexp.MustCompile(`\[DROP:\s*([^\]]+)\]`)
	fromPattern           = regexp.MustCompile(`\[FROM:\s*([^\]]+)\]`)
	teamTaskInlinePattern = regexp.MustCompile(`\[TEAM_TASK:\s*([^\]]*)\]`)
	teamTaskBlockPattern  = regexp.MustCompile(`(?s)\[TEAM_TASK\]\r?\n(.*?)\r?\n\r?\n\[NEXT_SECTION\]`)
)

// Parse extracts all routing markers from content.
func Parse(content string) *Parsed {
	p := &Parsed{}

	// NEXT markers: every occurrence contributes addressees in order.
	for _, m := range nextPattern.FindAllStringSubmatch(content, -1) {
		p.RawNextMarkers = append(p.RawNextMarkers, m[0])
		for _, part := range strings.Split(m[1], ",") {
			name, intent := splitIntent(part)
			if name == "" {
				continue
			}
			p.Addressees = append(p.Addressees, name)
			p.ParsedAddressees = append(p.ParsedAddressees, Addressee{Name: name, Intent: intent})
		}
	}

	// DROP markers: ALL (case-insensitive) supersedes named targets.
	for _, m := range dropPattern.FindAllStringSubmatch(content, -1) {
		for _, part := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			if strings.EqualFold(name, "ALL") {
				p.DropAll = true
			} else {
				p.DropTargets = append(p.DropTargets, name)
			}
		}
	}
	if p.DropAll {
		p.DropTargets = nil
	}

	// FROM: first occurrence wins; the marker stays in content for provenance.
	if m := fromPattern.FindStringSubmatch(content); m != nil {
		p.FromMember = strings.TrimSpace(m[1])
	}

	// TEAM_TASK: inline and block forms compete; only the last occurrence
	// in the message wins and is consumed (stripped from CleanContent).
	task, taskStart, taskEnd := lastTeamTask(content)

	clean := content
	if task != nil {
		clean = clean[:taskStart] + clean[taskEnd:]
		p.TeamTask = task
	}
	clean = nextPattern.ReplaceAllString(clean, "")
	clean = dropPattern.ReplaceAllString(clean, "")
	p.CleanContent = cleanWhitespace(clean)

	return p
}

// splitIntent separates "name!P1" into the addressee name and its intent.
// An invalid suffix is treated as part of the name; the default intent is P2.
func splitIntent(raw string) (string, Intent) {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndexByte(s, '!'); i >= 0 {
		if intent, ok := ParseIntentSuffix(s[i+1:]); ok {
			return strings.TrimSpace(s[:i]), intent
		}
	}
	return s, IntentReply
}

// lastTeamTask finds the TEAM_TASK occurrence (inline or block) with the
// highest start offset. Returns nil and zero bounds when none is present.
func lastTeamTask(content string) (task *string, start, end int) {
	inline := lastMatch(teamTaskInlinePattern, content)
	block := lastMatch(teamTaskBlockPattern, content)

	loc := inline
	if loc == nil || (block != nil && block[0] > loc[0]) {
		loc = block
	}
	if loc == nil {
		return nil, 0, 0
	}
	v := strings.TrimSpace(content[loc[2]:loc[3]])
	return &v, loc[0], loc[1]
}

func lastMatch(re *regexp.Regexp, s string) []int {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil
	}
	return locs[len(locs)-1]
}
