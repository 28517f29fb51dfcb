package convo

import (
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/agentchat/internal/markers"
	"github.com/nextlevelbuilder/agentchat/internal/team"
)

// Defaults for context materialization.
const (
	DefaultWindow          = 12
	DefaultMaxSiblings     = 5
	DefaultSiblingMaxRunes = 280
	DefaultMaxBytes        = 768 * 1024
)

// Options tune how much of the log a single prompt sees.
type Options struct {
	Window                 int
	MaxSiblings            int
	SiblingMaxRunes        int
	ForceParentReinsertion bool
	MaxBytes               int
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.MaxSiblings <= 0 {
		o.MaxSiblings = DefaultMaxSiblings
	}
	if o.SiblingMaxRunes <= 0 {
		o.SiblingMaxRunes = DefaultSiblingMaxRunes
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// ContextMessage is one prior message rendered for an agent prompt, with all
// routing markers stripped.
type ContextMessage struct {
	From      string
	To        string
	Content   string
	MessageID string
}

// SiblingSummary is a compressed view of another reply to the same parent.
type SiblingSummary struct {
	Label   string // speaker name suffixed with [intent]
	Content string
}

// RouteMeta identifies the routing item the context was built for.
type RouteMeta struct {
	ParentMessageID string
	Intent          markers.Intent
}

// Meta carries counts the assemblers and callers can inspect.
type Meta struct {
	TruncatedSiblings bool
	SiblingTotal      int
	SiblingCount      int
	ContextCount      int
}

// ContextInput is everything a prompt assembler needs for one turn.
type ContextInput struct {
	ContextMessages []ContextMessage
	CurrentMessage  string
	TeamTask        *string
	ParentContext   *ContextMessage // set when the parent fell outside the window
	SiblingContext  []SiblingSummary
	RouteMeta       *RouteMeta
	Meta            Meta
	MaxBytes        int

	// ForceParentReinsertion tells the assembler to reinsert the parent if
	// byte-budget fitting prunes it from ContextMessages.
	ForceParentReinsertion bool
}

// Route is the slice of a routing item the context manager needs.
type Route struct {
	ParentMessageID string
	TargetMemberID  string
	Intent          markers.Intent
}

// ContextForAgent builds context for the latest message without a specific
// route: all messages except the last, clipped to the window, plus the last
// message as the current one. agentType is accepted but does not change the
// result.
func (l *Log) ContextForAgent(agentType string, opts Options) ContextInput {
	opts = opts.withDefaults()

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.contextForLatestLocked(opts)
}

func (l *Log) contextForLatestLocked(opts Options) ContextInput {
	input := ContextInput{MaxBytes: opts.MaxBytes, TeamTask: l.teamTaskCopyLocked()}
	if len(l.messages) == 0 {
		return input
	}

	last := l.messages[len(l.messages)-1]
	candidates := l.messages[:len(l.messages)-1]
	if len(candidates) > opts.Window {
		candidates = candidates[len(candidates)-opts.Window:]
	}

	for _, m := range candidates {
		input.ContextMessages = append(input.ContextMessages, renderContextMessage(m))
	}
	input.CurrentMessage = markers.StripAll(last.Content)

	// Self-echo dedup: an AI speaker's own latest text must not appear both
	// as the current message and as the trailing context entry.
	if last.Speaker.Type == team.MemberAI && len(input.ContextMessages) > 0 {
		tail := input.ContextMessages[len(input.ContextMessages)-1]
		if tail.MessageID == last.ID ||
			(tail.From == last.Speaker.Name && tail.Content == input.CurrentMessage) {
			input.ContextMessages = input.ContextMessages[:len(input.ContextMessages)-1]
		}
	}

	input.Meta.ContextCount = len(input.ContextMessages)
	return input
}

// ContextForRoute builds context for a scheduled routing item: a window
// anchored before the parent message, sibling summaries, and the parent's
// stripped content as the current message.
func (l *Log) ContextForRoute(route Route, opts Options) ContextInput {
	opts = opts.withDefaults()

	l.mu.RLock()
	defer l.mu.RUnlock()

	parentIdx, ok := l.indexOf(route.ParentMessageID)
	if !ok {
		// Parent vanished (imported snapshot, cleared log): fall back to the
		// latest-message shape.
		input := l.contextForLatestLocked(opts)
		input.RouteMeta = &RouteMeta{ParentMessageID: route.ParentMessageID, Intent: route.Intent}
		input.Meta.TruncatedSiblings = false
		input.Meta.SiblingCount = 0
		return input
	}
	parent := l.messages[parentIdx]

	input := ContextInput{
		MaxBytes:               opts.MaxBytes,
		TeamTask:               l.teamTaskCopyLocked(),
		RouteMeta:              &RouteMeta{ParentMessageID: route.ParentMessageID, Intent: route.Intent},
		ForceParentReinsertion: opts.ForceParentReinsertion,
	}

	start := parentIdx - opts.Window
	if start < 0 {
		start = 0
	}
	window := l.messages[start:parentIdx]

	// Dedup for the route: the parent is already the current message, and
	// the target's own most recent reply in the window would only make the
	// agent repeat itself.
	lastOwnIdx := -1
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Speaker.ID == route.TargetMemberID {
			lastOwnIdx = i
			break
		}
	}
	for i, m := range window {
		if m.ID == parent.ID || i == lastOwnIdx {
			continue
		}
		input.ContextMessages = append(input.ContextMessages, renderContextMessage(m))
	}

	if opts.ForceParentReinsertion {
		pc := renderContextMessage(parent)
		input.ParentContext = &pc
	}

	// Sibling collection: other replies to the same parent, newest first.
	var siblings []Message
	for i := len(l.messages) - 1; i >= 0; i-- {
		m := l.messages[i]
		if m.Routing != nil && m.Routing.ParentMessageID == route.ParentMessageID {
			siblings = append(siblings, m)
		}
	}
	input.Meta.SiblingTotal = len(siblings)
	if len(siblings) > opts.MaxSiblings {
		siblings = siblings[:opts.MaxSiblings]
		input.Meta.TruncatedSiblings = true
	}
	for _, s := range siblings {
		input.SiblingContext = append(input.SiblingContext, summarizeSibling(s, opts.SiblingMaxRunes))
	}
	input.Meta.SiblingCount = len(input.SiblingContext)

	input.CurrentMessage = markers.StripAll(parent.Content)
	input.Meta.ContextCount = len(input.ContextMessages)
	return input
}

func (l *Log) teamTaskCopyLocked() *string {
	if l.teamTask == nil {
		return nil
	}
	v := *l.teamTask
	return &v
}

func renderContextMessage(m Message) ContextMessage {
	to := "all"
	if m.Routing != nil && len(m.Routing.ResolvedAddressees) > 0 {
		to = strings.Join(m.Routing.ResolvedAddressees, ", ")
	}
	return ContextMessage{
		From:      m.Speaker.Name,
		To:        to,
		Content:   markers.StripAll(m.Content),
		MessageID: m.ID,
	}
}

var fencedCodePattern = regexp.MustCompile("(?s)```.*?```")

func summarizeSibling(m Message, maxRunes int) SiblingSummary {
	content := markers.StripAll(m.Content)
	content = fencedCodePattern.ReplaceAllString(content, "[code block omitted]")
	content = TruncateRunes(content, maxRunes)

	intent := markers.IntentReply
	if m.Routing != nil && m.Routing.Intent != "" {
		intent = m.Routing.Intent
	}
	return SiblingSummary{
		Label:   m.Speaker.Name + " [" + string(intent) + "]",
		Content: content,
	}
}
