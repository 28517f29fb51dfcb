package team

import (
	"reflect"
	"testing"
)

func testTeam() *Team {
	return &Team{
		ID:   "t1",
		Name: "core",
		Members: []Member{
			{ID: "ai-alpha", Name: "alpha", DisplayName: "Alpha One", Type: MemberAI, AgentType: "claude", Order: 0},
			{ID: "human-1", Name: "dana", DisplayName: "Dana", Type: MemberHuman, Order: 1},
			{ID: "ai-beta", Name: "beta", DisplayName: "Claude-Code Beta", Type: MemberAI, AgentType: "codex", Order: 2},
		},
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Claude-Code", "claudecode"},
		{"claude code", "claudecode"},
		{"  AL pha ", "alpha"},
		{"a-b-c", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	tm := testTeam()
	tests := []struct {
		name       string
		addressees []string
		wantIDs    []string
		wantUnres  []string
	}{
		{"by id", []string{"ai-alpha"}, []string{"ai-alpha"}, nil},
		{"by name", []string{"beta"}, []string{"ai-beta"}, nil},
		{"by displayName with spacing", []string{"alpha one"}, []string{"ai-alpha"}, nil},
		{"case insensitive", []string{"ALPHA"}, []string{"ai-alpha"}, nil},
		{"unknown", []string{"typo"}, nil, []string{"typo"}},
		{"mixed", []string{"dana", "nobody"}, []string{"human-1"}, []string{"nobody"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tm.Resolve(tt.addressees)
			var ids []string
			for _, m := range res.Resolved {
				ids = append(ids, m.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("resolved = %v, want %v", ids, tt.wantIDs)
			}
			if !reflect.DeepEqual(res.Unresolved, tt.wantUnres) {
				t.Errorf("unresolved = %v, want %v", res.Unresolved, tt.wantUnres)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	known := map[string]bool{"claude": true, "codex": true}

	t.Run("valid team", func(t *testing.T) {
		if err := testTeam().Validate(known); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("too few members", func(t *testing.T) {
		tm := &Team{Name: "solo", Members: []Member{{ID: "a", Name: "a", Type: MemberHuman}}}
		if err := tm.Validate(nil); err == nil {
			t.Error("expected error for single-member team")
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		tm := testTeam()
		tm.Members[2].ID = "ai-alpha"
		if err := tm.Validate(known); err == nil {
			t.Error("expected duplicate id error")
		}
	})

	t.Run("duplicate normalized displayName", func(t *testing.T) {
		tm := testTeam()
		tm.Members[2].DisplayName = "alpha-one" // normalizes same as "Alpha One"
		if err := tm.Validate(known); err == nil {
			t.Error("expected duplicate displayName error")
		}
	})

	t.Run("unknown agent type", func(t *testing.T) {
		tm := testTeam()
		if err := tm.Validate(map[string]bool{"claude": true}); err == nil {
			t.Error("expected unknown agentType error for codex member")
		}
	})

	t.Run("ai member without agent type", func(t *testing.T) {
		tm := testTeam()
		tm.Members[0].AgentType = ""
		if err := tm.Validate(known); err == nil {
			t.Error("expected missing agentType error")
		}
	})
}

func TestFirstHuman(t *testing.T) {
	tm := testTeam()
	h := tm.FirstHuman()
	if h == nil || h.ID != "human-1" {
		t.Fatalf("FirstHuman = %v, want human-1", h)
	}

	tm.Members = append(tm.Members, Member{ID: "human-0", Name: "zed", Type: MemberHuman, Order: -1})
	if h := tm.FirstHuman(); h.ID != "human-0" {
		t.Errorf("FirstHuman = %s, want human-0 (smallest order)", h.ID)
	}

	aiOnly := &Team{Members: []Member{
		{ID: "a", Name: "a", Type: MemberAI, AgentType: "claude"},
		{ID: "b", Name: "b", Type: MemberAI, AgentType: "claude"},
	}}
	if aiOnly.FirstHuman() != nil {
		t.Error("FirstHuman should be nil for an AI-only team")
	}
}

func TestParseDocument(t *testing.T) {
	doc := []byte(`{
		// JSON5: comments and trailing commas allowed
		schemaVersion: 1,
		agents: [
			{name: "claude", command: "claude"},
			{name: "codex", command: "codex"},
		],
		team: {
			id: "t1",
			name: "core",
			members: [
				{id: "ai-alpha", name: "alpha", displayName: "Alpha", type: "ai", agentType: "claude", order: 0},
				{id: "human-1", name: "dana", displayName: "Dana", type: "human", order: 1},
			],
		},
		maxRounds: 12,
	}`)

	d, err := ParseDocument(doc)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if d.MaxRounds != 12 {
		t.Errorf("MaxRounds = %d, want 12", d.MaxRounds)
	}
	if d.AgentByName("codex") == nil {
		t.Error("AgentByName(codex) = nil")
	}
}

func TestParseDocument_BadVersion(t *testing.T) {
	_, err := ParseDocument([]byte(`{schemaVersion: 99, agents: [], team: {name: "x", members: []}}`))
	if err == nil {
		t.Fatal("expected schemaVersion error")
	}
}
