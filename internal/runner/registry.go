package runner

import (
	"fmt"

	"github.com/nextlevelbuilder/agentchat/internal/prompt"
	"github.com/nextlevelbuilder/agentchat/internal/team"
)

// TypeConfig describes how to invoke one agent type: the executable, the
// fixed argument prefix, how the prompt is passed, and the out-of-band
// system flag when the CLI has one.
type TypeConfig struct {
	Name           string
	Family         string
	Command        string
	DefaultArgs    []string
	ExtraArgs      []string // operator-registered args from the team document
	PromptArgs     []string // e.g. ["-p"] for claude-code; prompt is appended after
	SystemFlagName string   // e.g. "--append-system-prompt"; empty = system inlined
}

// familyDefaults returns the built-in invocation shape for a canonical family.
func familyDefaults(family string) TypeConfig {
	switch family {
	case prompt.FamilyClaudeCode:
		return TypeConfig{
			Family:         family,
			DefaultArgs:    []string{"--output-format", "stream-json", "--verbose"},
			PromptArgs:     []string{"-p"},
			SystemFlagName: "--append-system-prompt",
		}
	case prompt.FamilyOpenAICodex:
		return TypeConfig{
			Family:      family,
			DefaultArgs: []string{"exec", "--json"},
		}
	case prompt.FamilyGemini:
		return TypeConfig{
			Family:      family,
			DefaultArgs: []string{"--output-format", "stream-json"},
			PromptArgs:  []string{"-p"},
		}
	}
	return TypeConfig{Family: prompt.FamilyPlain}
}

// Registry maps agent type names from the team document to invocation
// configs. It is built once per coordinator.
type Registry struct {
	types map[string]TypeConfig
}

// NewRegistry builds a registry from the team document's agent entries.
func NewRegistry(defs []team.AgentDef) *Registry {
	r := &Registry{types: make(map[string]TypeConfig, len(defs))}
	for _, def := range defs {
		tc := familyDefaults(prompt.CanonicalFamily(def.Name))
		tc.Name = def.Name
		tc.Command = def.Command
		tc.ExtraArgs = append([]string(nil), def.Args...)
		r.types[def.Name] = tc
	}
	return r
}

// Lookup returns the config for an agent type.
func (r *Registry) Lookup(agentType string) (TypeConfig, error) {
	tc, ok := r.types[agentType]
	if !ok {
		return TypeConfig{}, fmt.Errorf("unknown agent type %q", agentType)
	}
	return tc, nil
}

// Known returns the set of registered agent type names.
func (r *Registry) Known() map[string]bool {
	out := make(map[string]bool, len(r.types))
	for name := range r.types {
		out[name] = true
	}
	return out
}
