package prompt

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/agentchat/internal/team"
)

// BuildSystemInstruction renders the per-member system instruction: who the
// member is, who else is on the team, and the routing marker protocol.
// extra (team instruction file contents, if any) is appended with leading
// and trailing whitespace trimmed.
func BuildSystemInstruction(t *team.Team, member *team.Member, extra string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s", member.Name)
	if member.Role != "" {
		fmt.Fprintf(&b, " (%s)", member.Role)
	}
	fmt.Fprintf(&b, ", a member of team %s.\n", t.Name)
	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n")
	}

	b.WriteString("\nTeam members:\n")
	for _, m := range t.Members {
		label := m.Name
		if m.DisplayName != "" && m.DisplayName != m.Name {
			label += " (" + m.DisplayName + ")"
		}
		kind := "AI"
		if m.Type == team.MemberHuman {
			kind = "human"
		}
		fmt.Fprintf(&b, "- %s — %s", label, kind)
		if m.Role != "" {
			fmt.Fprintf(&b, ", %s", m.Role)
		}
		if m.ID == member.ID {
			b.WriteString(" (you)")
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Routing protocol — end your reply with routing markers:
- [NEXT: name] hands the conversation to that member. Multiple targets: [NEXT: a, b].
- An intent suffix sets urgency: [NEXT: name!P1] interrupts, !P2 replies (default), !P3 extends when idle.
- [DROP: name] or [DROP: ALL] cancels queued turns.
- [TEAM_TASK: text] updates the shared team task.
Reply without any [NEXT:] marker to hand control back to the humans.
`)

	if extra != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(extra))
		b.WriteString("\n")
	}
	return b.String()
}
