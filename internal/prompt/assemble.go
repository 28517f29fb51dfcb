// Package prompt turns a materialized ContextInput into the final prompt
// text for one agent family, under the byte budget.
package prompt

import (
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/agentchat/internal/convo"
)

// Canonical agent families.
const (
	FamilyClaudeCode  = "claude-code"
	FamilyOpenAICodex = "openai-codex"
	FamilyGemini      = "google-gemini"
	FamilyPlain       = "plain-text"
)

// Output is the assembled prompt. SystemFlag is non-empty only for families
// whose CLI takes the system instruction out-of-band (claude-code's
// --append-system-prompt). Codex and gemini inline it into the prompt; the
// plain-text fallback omits it and sends only the current message.
type Output struct {
	Prompt     string
	SystemFlag string
}

// CanonicalFamily normalizes an agent type alias to its canonical family.
// Unknown types map to FamilyPlain.
func CanonicalFamily(agentType string) string {
	switch strings.ToLower(strings.TrimSpace(agentType)) {
	case "claude", "claude-code":
		return FamilyClaudeCode
	case "codex", "openai-codex":
		return FamilyOpenAICodex
	case "gemini", "google-gemini":
		return FamilyGemini
	}
	return FamilyPlain
}

// Assemble renders the prompt for agentType from in, fitting it to
// in.MaxBytes. systemInstruction is the per-member instruction block built
// by the caller (see BuildSystemInstruction).
func Assemble(agentType string, in convo.ContextInput, systemInstruction string) Output {
	family := CanonicalFamily(agentType)
	if family == FamilyPlain && agentType != "" {
		slog.Warn("unknown agent family, using plain-text prompt", "agent_type", agentType)
	}

	out := fit(in, func(cur convo.ContextInput) Output {
		return render(family, cur, systemInstruction)
	})
	return out
}

// render produces the family-specific textual shape.
func render(family string, in convo.ContextInput, system string) Output {
	body := renderBody(in)

	switch family {
	case FamilyClaudeCode:
		return Output{
			Prompt:     body + "[MESSAGE]\n" + in.CurrentMessage,
			SystemFlag: system,
		}
	case FamilyOpenAICodex:
		return Output{
			Prompt: "[SYSTEM]\n" + system + "\n\n" + body + "[MESSAGE]\n" + in.CurrentMessage,
		}
	case FamilyGemini:
		var b strings.Builder
		b.WriteString("Instructions:\n")
		b.WriteString(system)
		if body != "" {
			b.WriteString("\n\n")
			b.WriteString(strings.TrimSuffix(body, "\n"))
		}
		b.WriteString("\n\nLast message:\n")
		b.WriteString(in.CurrentMessage)
		return Output{Prompt: b.String()}
	default:
		return Output{Prompt: in.CurrentMessage}
	}
}

// renderBody renders the shared context sections. Each section ends with a
// blank line so the family wrappers can concatenate directly.
func renderBody(in convo.ContextInput) string {
	var b strings.Builder

	if in.TeamTask != nil && *in.TeamTask != "" {
		b.WriteString("Team task:\n")
		b.WriteString(*in.TeamTask)
		b.WriteString("\n\n")
	}

	if in.ParentContext != nil {
		b.WriteString("Message being replied to (from ")
		b.WriteString(in.ParentContext.From)
		b.WriteString("):\n")
		b.WriteString(in.ParentContext.Content)
		b.WriteString("\n\n")
	}

	if len(in.ContextMessages) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range in.ContextMessages {
			b.WriteString(m.From)
			b.WriteString(" → ")
			b.WriteString(m.To)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(in.SiblingContext) > 0 {
		b.WriteString("Other replies to the same message:\n")
		for _, s := range in.SiblingContext {
			b.WriteString("- ")
			b.WriteString(s.Label)
			b.WriteString(": ")
			b.WriteString(s.Content)
			b.WriteString("\n")
		}
		if in.Meta.TruncatedSiblings {
			b.WriteString("(earlier replies omitted)\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
