package markers

import (
	"reflect"
	"strings"
	"testing"
)

func TestParse_SingleNext(t *testing.T) {
	p := Parse("Start review [NEXT: ai-alpha]")

	if got := p.Addressees; !reflect.DeepEqual(got, []string{"ai-alpha"}) {
		t.Errorf("Addressees = %v, want [ai-alpha]", got)
	}
	if p.ParsedAddressees[0].Intent != IntentReply {
		t.Errorf("default intent = %s, want P2_REPLY", p.ParsedAddressees[0].Intent)
	}
	if strings.Contains(p.CleanContent, "[NEXT:") {
		t.Errorf("CleanContent still contains NEXT marker: %q", p.CleanContent)
	}
	if p.CleanContent != "Start review" {
		t.Errorf("CleanContent = %q, want 'Start review'", p.CleanContent)
	}
}

func TestParse_IntentSuffixes(t *testing.T) {
	p := Parse("Fix bug [NEXT: claude!P1, codex!P3]")

	want := []Addressee{
		{Name: "claude", Intent: IntentInterrupt},
		{Name: "codex", Intent: IntentExtend},
	}
	if !reflect.DeepEqual(p.ParsedAddressees, want) {
		t.Errorf("ParsedAddressees = %v, want %v", p.ParsedAddressees, want)
	}
	if len(p.RawNextMarkers) != 1 {
		t.Errorf("RawNextMarkers = %v, want one entry", p.RawNextMarkers)
	}
}

func TestParse_IntentSuffix_CaseAndInvalid(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Addressee
	}{
		{"lowercase suffix", "[NEXT: max!p1]", Addressee{Name: "max", Intent: IntentInterrupt}},
		{"invalid suffix kept in name", "[NEXT: yell!loud]", Addressee{Name: "yell!loud", Intent: IntentReply}},
		{"bare bang kept in name", "[NEXT: hey!]", Addressee{Name: "hey!", Intent: IntentReply}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.input)
			if len(p.ParsedAddressees) != 1 || p.ParsedAddressees[0] != tt.want {
				t.Errorf("ParsedAddressees = %v, want [%v]", p.ParsedAddressees, tt.want)
			}
		})
	}
}

func TestParse_MultipleNextMarkers(t *testing.T) {
	p := Parse("do [NEXT:alpha][NEXT:typo]")

	if !reflect.DeepEqual(p.Addressees, []string{"alpha", "typo"}) {
		t.Errorf("Addressees = %v, want [alpha typo]", p.Addressees)
	}
	if len(p.RawNextMarkers) != 2 {
		t.Errorf("RawNextMarkers = %v, want two entries", p.RawNextMarkers)
	}
}

func TestParse_DropAll(t *testing.T) {
	p := Parse("[DROP: ALL] [NEXT: max]")

	if !p.DropAll {
		t.Error("DropAll should be true")
	}
	if p.DropTargets != nil {
		t.Errorf("DropTargets = %v, want nil when ALL is present", p.DropTargets)
	}
	if !reflect.DeepEqual(p.Addressees, []string{"max"}) {
		t.Errorf("Addressees = %v, want [max]", p.Addressees)
	}
}

func TestParse_DropAll_CaseInsensitive_Supersedes(t *testing.T) {
	p := Parse("[DROP: alice, all, bob]")
	if !p.DropAll {
		t.Error("DropAll should be true for lowercase 'all'")
	}
	if p.DropTargets != nil {
		t.Errorf("DropTargets = %v, want nil — ALL is returned exclusively", p.DropTargets)
	}
}

func TestParse_DropNames(t *testing.T) {
	p := Parse("[DROP: alice, bob]")
	if p.DropAll {
		t.Error("DropAll should be false")
	}
	if !reflect.DeepEqual(p.DropTargets, []string{"alice", "bob"}) {
		t.Errorf("DropTargets = %v, want [alice bob]", p.DropTargets)
	}
}

func TestParse_FromPreservedInContent(t *testing.T) {
	p := Parse("[FROM: relay-bot] hello there")
	if p.FromMember != "relay-bot" {
		t.Errorf("FromMember = %q, want relay-bot", p.FromMember)
	}
	if !strings.Contains(p.CleanContent, "[FROM: relay-bot]") {
		t.Errorf("FROM marker should survive in CleanContent, got %q", p.CleanContent)
	}
}

func TestParse_TeamTaskInline(t *testing.T) {
	p := Parse("kick off [TEAM_TASK: ship the parser]")
	if p.TeamTask == nil || *p.TeamTask != "ship the parser" {
		t.Errorf("TeamTask = %v, want 'ship the parser'", p.TeamTask)
	}
	if strings.Contains(p.CleanContent, "TEAM_TASK") {
		t.Errorf("consumed TEAM_TASK should be stripped, got %q", p.CleanContent)
	}
}

func TestParse_TeamTaskBlock(t *testing.T) {
	content := "prelude\n[TEAM_TASK]\nline one\nline two\n\n[NEXT_SECTION]\ntail"
	p := Parse(content)
	if p.TeamTask == nil || *p.TeamTask != "line one\nline two" {
		t.Errorf("TeamTask = %v, want block body", p.TeamTask)
	}
	if strings.Contains(p.CleanContent, "TEAM_TASK") || strings.Contains(p.CleanContent, "NEXT_SECTION") {
		t.Errorf("consumed block should be stripped, got %q", p.CleanContent)
	}
}

func TestParse_TeamTaskBlockAtStart(t *testing.T) {
	p := Parse("[TEAM_TASK]\nbody\n\n[NEXT_SECTION]")
	if p.TeamTask == nil || *p.TeamTask != "body" {
		t.Errorf("TeamTask = %v, want 'body' for block at offset 0", p.TeamTask)
	}
}

func TestParse_LastTeamTaskWins(t *testing.T) {
	p := Parse("[TEAM_TASK: first] and then [TEAM_TASK: second]")
	if p.TeamTask == nil || *p.TeamTask != "second" {
		t.Errorf("TeamTask = %v, want 'second'", p.TeamTask)
	}
	// The earlier, unconsumed marker stays for audit.
	if !strings.Contains(p.CleanContent, "[TEAM_TASK: first]") {
		t.Errorf("earlier TEAM_TASK should remain, got %q", p.CleanContent)
	}
}

func TestStripAll_RemovesEveryMarker(t *testing.T) {
	inputs := []string{
		"hi [NEXT: a!P1] bye",
		"[DROP: ALL] done",
		"[FROM: bot] said [NEXT:x]",
		"[TEAM_TASK: t] go",
		"[TEAM_TASK]\nbody\n\n[NEXT_SECTION] after",
		"[TEAM_TASK] dangling header",
		"mix [NEXT:a][DROP:b][FROM:c][TEAM_TASK:d]",
	}

	for _, in := range inputs {
		got := StripAll(in)
		for _, marker := range []string{"[NEXT:", "[FROM:", "[TEAM_TASK", "[DROP:"} {
			if strings.Contains(got, marker) {
				t.Errorf("StripAll(%q) = %q still contains %s", in, got, marker)
			}
		}
	}
}

func TestStripAll_WhitespaceCleanup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapse spaces", "a   b\tc", "a b c"},
		{"drop empty lines", "a\n\n\nb", "a\nb"},
		{"preserve newline between non-empty", "one\ntwo", "one\ntwo"},
		{"marker leaves no blank residue", "one\n[NEXT: x]\ntwo", "one\ntwo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripAll(tt.input); got != tt.want {
				t.Errorf("StripAll(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
