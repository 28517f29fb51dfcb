package convo

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/agentchat/internal/markers"
	"github.com/nextlevelbuilder/agentchat/internal/team"
)

func addMsg(t *testing.T, l *Log, speakerID, name string, typ team.MemberType, content string, routing *Routing) Message {
	t.Helper()
	m, err := l.AddMessage(Message{Content: content, Speaker: speakerFor(speakerID, name, typ), Routing: routing})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestContextForAgent_WindowAndStripping(t *testing.T) {
	l := NewLog(Hooks{})
	addMsg(t, l, "h", "dana", team.MemberHuman, "one [NEXT: alpha]", &Routing{ResolvedAddressees: []string{"alpha"}})
	addMsg(t, l, "a", "alpha", team.MemberAI, "two", nil)
	addMsg(t, l, "h", "dana", team.MemberHuman, "three", nil)
	addMsg(t, l, "h", "dana", team.MemberHuman, "current [NEXT: alpha]", nil)

	in := l.ContextForAgent("claude", Options{Window: 2})

	if in.CurrentMessage != "current" {
		t.Errorf("CurrentMessage = %q, want stripped 'current'", in.CurrentMessage)
	}
	if len(in.ContextMessages) != 2 {
		t.Fatalf("context size = %d, want window 2", len(in.ContextMessages))
	}
	if in.ContextMessages[0].Content != "two" || in.ContextMessages[1].Content != "three" {
		t.Errorf("window contents wrong: %+v", in.ContextMessages)
	}
	if in.ContextMessages[0].To != "all" {
		t.Errorf("To = %q, want 'all' when no addressees", in.ContextMessages[0].To)
	}
}

func TestContextForAgent_ToJoinsAddressees(t *testing.T) {
	l := NewLog(Hooks{})
	addMsg(t, l, "h", "dana", team.MemberHuman, "go [NEXT: alpha, beta]", &Routing{ResolvedAddressees: []string{"alpha", "beta"}})
	addMsg(t, l, "a", "alpha", team.MemberAI, "done", nil)

	in := l.ContextForAgent("claude", Options{})
	if in.ContextMessages[0].To != "alpha, beta" {
		t.Errorf("To = %q, want 'alpha, beta'", in.ContextMessages[0].To)
	}
}

func TestContextForAgent_SelfEchoDedup(t *testing.T) {
	l := NewLog(Hooks{})
	addMsg(t, l, "h", "dana", team.MemberHuman, "ask", nil)

	// The AI's reply was recorded twice (echo with a distinct id): identical
	// speaker + stripped content must be deduplicated from the candidates.
	addMsg(t, l, "a", "alpha", team.MemberAI, "the answer [NEXT: dana]", nil)
	last := addMsg(t, l, "a", "alpha", team.MemberAI, "the answer", nil)

	in := l.ContextForAgent("claude", Options{})
	for _, cm := range in.ContextMessages {
		if cm.From == last.Speaker.Name && cm.Content == in.CurrentMessage {
			t.Errorf("self-echo candidate survived: %+v", cm)
		}
	}
	if len(in.ContextMessages) != 1 {
		t.Errorf("context size = %d, want 1 (only dana's ask)", len(in.ContextMessages))
	}
}

func TestContextForAgent_HumanSenderNotDeduped(t *testing.T) {
	l := NewLog(Hooks{})
	addMsg(t, l, "h", "dana", team.MemberHuman, "same", nil)
	addMsg(t, l, "h", "dana", team.MemberHuman, "same", nil)

	in := l.ContextForAgent("claude", Options{})
	if len(in.ContextMessages) != 1 {
		t.Fatalf("context size = %d, want 1", len(in.ContextMessages))
	}
	// Human repetition is legitimate; the dedup rule is AI-only.
	if in.ContextMessages[0].Content != "same" {
		t.Errorf("candidate = %+v", in.ContextMessages[0])
	}
}

func TestContextForRoute_Shape(t *testing.T) {
	l := NewLog(Hooks{})
	addMsg(t, l, "h", "dana", team.MemberHuman, "old context", nil)                // msg-1
	parent := addMsg(t, l, "h", "dana", team.MemberHuman, "parent [NEXT: a, b]", nil) // msg-2
	addMsg(t, l, "a", "alpha", team.MemberAI, "sib one",
		&Routing{ParentMessageID: parent.ID, Intent: markers.IntentReply}) // msg-3
	addMsg(t, l, "b", "beta", team.MemberAI, "sib two ```go\ncode\n``` tail",
		&Routing{ParentMessageID: parent.ID, Intent: markers.IntentExtend}) // msg-4

	in := l.ContextForRoute(Route{ParentMessageID: parent.ID, TargetMemberID: "c", Intent: markers.IntentReply}, Options{})

	if in.CurrentMessage != "parent" {
		t.Errorf("CurrentMessage = %q, want stripped parent", in.CurrentMessage)
	}
	if in.RouteMeta == nil || in.RouteMeta.ParentMessageID != parent.ID {
		t.Errorf("RouteMeta = %+v", in.RouteMeta)
	}

	// Window is strictly before the parent; the parent itself is excluded.
	for _, cm := range in.ContextMessages {
		if cm.MessageID == parent.ID {
			t.Error("parent duplicated into context window")
		}
	}
	if len(in.ContextMessages) != 1 || in.ContextMessages[0].Content != "old context" {
		t.Errorf("context = %+v", in.ContextMessages)
	}

	// Siblings newest-first with code fences collapsed.
	if len(in.SiblingContext) != 2 {
		t.Fatalf("siblings = %d, want 2", len(in.SiblingContext))
	}
	if !strings.HasPrefix(in.SiblingContext[0].Label, "beta [P3_EXTEND]") {
		t.Errorf("first sibling label = %q, want newest (beta) with intent", in.SiblingContext[0].Label)
	}
	if !strings.Contains(in.SiblingContext[0].Content, "[code block omitted]") {
		t.Errorf("code fence not collapsed: %q", in.SiblingContext[0].Content)
	}
	if strings.Contains(in.SiblingContext[0].Content, "code") && !strings.Contains(in.SiblingContext[0].Content, "omitted") {
		t.Errorf("code fence content leaked: %q", in.SiblingContext[0].Content)
	}
}

func TestContextForRoute_SiblingTruncation(t *testing.T) {
	l := NewLog(Hooks{})
	parent := addMsg(t, l, "h", "dana", team.MemberHuman, "parent", nil)
	for i := 0; i < 4; i++ {
		addMsg(t, l, "a", "alpha", team.MemberAI, strings.Repeat("x", 50),
			&Routing{ParentMessageID: parent.ID, Intent: markers.IntentReply})
	}

	in := l.ContextForRoute(Route{ParentMessageID: parent.ID, TargetMemberID: "z"},
		Options{MaxSiblings: 2, SiblingMaxRunes: 10})

	if !in.Meta.TruncatedSiblings {
		t.Error("TruncatedSiblings should be true")
	}
	if in.Meta.SiblingTotal != 4 || in.Meta.SiblingCount != 2 {
		t.Errorf("sibling counts = %+v", in.Meta)
	}
	for _, s := range in.SiblingContext {
		if !strings.HasSuffix(s.Content, "…") {
			t.Errorf("sibling content not truncated: %q", s.Content)
		}
	}
}

func TestContextForRoute_TargetOwnMessageDeduped(t *testing.T) {
	l := NewLog(Hooks{})
	addMsg(t, l, "c", "gamma", team.MemberAI, "my earlier words", nil) // msg-1
	addMsg(t, l, "h", "dana", team.MemberHuman, "between", nil)       // msg-2
	addMsg(t, l, "c", "gamma", team.MemberAI, "my recent words", nil) // msg-3
	parent := addMsg(t, l, "h", "dana", team.MemberHuman, "parent [NEXT: gamma]", nil)

	in := l.ContextForRoute(Route{ParentMessageID: parent.ID, TargetMemberID: "c"}, Options{})

	for _, cm := range in.ContextMessages {
		if cm.Content == "my recent words" {
			t.Error("target's most recent message should be removed from the window")
		}
	}
	// Only the most recent own message goes; earlier ones stay.
	found := false
	for _, cm := range in.ContextMessages {
		if cm.Content == "my earlier words" {
			found = true
		}
	}
	if !found {
		t.Error("target's earlier message should stay in the window")
	}
}

func TestContextForRoute_ParentReinsertion(t *testing.T) {
	l := NewLog(Hooks{})
	parent := addMsg(t, l, "h", "dana", team.MemberHuman, "anchor [NEXT: a]", nil)
	for i := 0; i < 5; i++ {
		addMsg(t, l, "x", "xi", team.MemberAI, "filler", nil)
	}
	target := addMsg(t, l, "h", "dana", team.MemberHuman, "latest", nil)
	_ = target

	in := l.ContextForRoute(Route{ParentMessageID: parent.ID, TargetMemberID: "a"},
		Options{Window: 2, ForceParentReinsertion: true})

	if in.ParentContext == nil {
		t.Fatal("ParentContext should be set when parent is outside the window")
	}
	if in.ParentContext.Content != "anchor" {
		t.Errorf("ParentContext = %+v", in.ParentContext)
	}
}

func TestContextForRoute_MissingParentFallsBack(t *testing.T) {
	l := NewLog(Hooks{})
	addMsg(t, l, "h", "dana", team.MemberHuman, "a", nil)
	addMsg(t, l, "h", "dana", team.MemberHuman, "b", nil)

	in := l.ContextForRoute(Route{ParentMessageID: "msg-404", TargetMemberID: "a", Intent: markers.IntentReply}, Options{})

	if in.Meta.TruncatedSiblings || in.Meta.SiblingCount != 0 {
		t.Errorf("fallback meta = %+v, want no siblings", in.Meta)
	}
	if in.CurrentMessage != "b" {
		t.Errorf("fallback CurrentMessage = %q, want latest", in.CurrentMessage)
	}
	if in.RouteMeta == nil || in.RouteMeta.ParentMessageID != "msg-404" {
		t.Errorf("RouteMeta = %+v", in.RouteMeta)
	}
}
