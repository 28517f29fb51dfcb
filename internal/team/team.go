// Package team holds the team model, config document loading, and the
// identity resolver that maps addressee strings to members.
package team

import (
	"fmt"
)

// MemberType distinguishes AI members (dispatched via CLI adapters) from
// human members (the coordinator pauses and waits for their input).
type MemberType string

const (
	MemberAI    MemberType = "ai"
	MemberHuman MemberType = "human"
)

// Member is one participant in a team.
type Member struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName"`
	Type        MemberType `json:"type"`
	Role        string     `json:"role,omitempty"`
	Order       int        `json:"order"`
	AgentType   string     `json:"agentType,omitempty"` // selects the runner adapter; AI members only
}

// IsAI reports whether the member is dispatched through an agent adapter.
func (m *Member) IsAI() bool { return m.Type == MemberAI }

// RoleDefinition describes one named role referenced by members.
type RoleDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Team is a validated set of members plus role metadata.
type Team struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	DisplayName     string           `json:"displayName,omitempty"`
	Description     string           `json:"description,omitempty"`
	Members         []Member         `json:"members"`
	RoleDefinitions []RoleDefinition `json:"roleDefinitions,omitempty"`
	InstructionFile string           `json:"instructionFile,omitempty"`
}

// Validate enforces the team invariants: at least two members, unique ids
// and names, unique normalized displayNames, and a known agentType on every
// AI member. knownAgentTypes may be nil to skip the adapter check.
func (t *Team) Validate(knownAgentTypes map[string]bool) error {
	if len(t.Members) < 2 {
		return fmt.Errorf("team %q: need at least 2 members, have %d", t.Name, len(t.Members))
	}

	ids := make(map[string]bool, len(t.Members))
	names := make(map[string]bool, len(t.Members))
	displays := make(map[string]string, len(t.Members))
	for i := range t.Members {
		m := &t.Members[i]
		if m.ID == "" || m.Name == "" {
			return fmt.Errorf("team %q: member %d has empty id or name", t.Name, i)
		}
		if ids[m.ID] {
			return fmt.Errorf("team %q: duplicate member id %q", t.Name, m.ID)
		}
		ids[m.ID] = true
		if names[m.Name] {
			return fmt.Errorf("team %q: duplicate member name %q", t.Name, m.Name)
		}
		names[m.Name] = true

		// Identical normalized displayNames would make resolution ambiguous.
		if m.DisplayName != "" {
			key := Normalize(m.DisplayName)
			if prev, ok := displays[key]; ok {
				return fmt.Errorf("team %q: members %q and %q share displayName %q", t.Name, prev, m.ID, m.DisplayName)
			}
			displays[key] = m.ID
		}

		switch m.Type {
		case MemberAI:
			if m.AgentType == "" {
				return fmt.Errorf("team %q: AI member %q has no agentType", t.Name, m.ID)
			}
			if knownAgentTypes != nil && !knownAgentTypes[m.AgentType] {
				return fmt.Errorf("team %q: member %q references unknown agentType %q", t.Name, m.ID, m.AgentType)
			}
		case MemberHuman:
		default:
			return fmt.Errorf("team %q: member %q has invalid type %q", t.Name, m.ID, m.Type)
		}
	}
	return nil
}

// MemberByID returns the member with the given id, or nil.
func (t *Team) MemberByID(id string) *Member {
	for i := range t.Members {
		if t.Members[i].ID == id {
			return &t.Members[i]
		}
	}
	return nil
}

// FirstHuman returns the human member with the smallest order, or nil when
// the team has no humans. Used as the pause target when routing runs dry.
func (t *Team) FirstHuman() *Member {
	var best *Member
	for i := range t.Members {
		m := &t.Members[i]
		if m.Type != MemberHuman {
			continue
		}
		if best == nil || m.Order < best.Order {
			best = m
		}
	}
	return best
}
