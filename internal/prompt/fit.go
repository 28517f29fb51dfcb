package prompt

import (
	"log/slog"

	"github.com/nextlevelbuilder/agentchat/internal/convo"
)

// fit shrinks the context until the rendered prompt is within in.MaxBytes.
// Shedding order: siblings (oldest first), then context messages (oldest
// first), then parent context and team task. The current message is never
// touched; if the scaffold alone still exceeds the budget the prompt is
// clipped on a code-point boundary as a last resort.
func fit(in convo.ContextInput, renderFn func(convo.ContextInput) Output) Output {
	if in.MaxBytes <= 0 {
		return renderFn(in)
	}

	out := renderFn(in)
	for len(out.Prompt) > in.MaxBytes {
		switch {
		case len(in.SiblingContext) > 0:
			// Siblings are newest-first; shed from the tail.
			in.SiblingContext = in.SiblingContext[:len(in.SiblingContext)-1]
			in.Meta.TruncatedSiblings = true
		case len(in.ContextMessages) > 0:
			dropped := in.ContextMessages[0]
			in.ContextMessages = in.ContextMessages[1:]
			// Keep the routing anchor visible even when the window collapses.
			if in.ForceParentReinsertion && in.ParentContext == nil &&
				in.RouteMeta != nil && dropped.MessageID == in.RouteMeta.ParentMessageID {
				in.ParentContext = &dropped
			}
		case in.ParentContext != nil:
			in.ParentContext = nil
		case in.TeamTask != nil:
			in.TeamTask = nil
		default:
			slog.Warn("prompt scaffold exceeds byte budget, clipping",
				"bytes", len(out.Prompt), "max_bytes", in.MaxBytes)
			out.Prompt = convo.TruncateBytes(out.Prompt, in.MaxBytes)
			return out
		}
		out = renderFn(in)
	}
	return out
}
