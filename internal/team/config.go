package team

import (
	"fmt"
	"os"
	"time"

	"github.com/titanous/json5"
)

// SupportedSchemaVersions lists team document versions this build accepts.
var SupportedSchemaVersions = map[int]bool{1: true}

// AgentDef is one registered external CLI tool in the team document.
// Only command + args are consumed by the runner; usePty/installedAt are
// recorded by the registration collaborator.
type AgentDef struct {
	Name        string    `json:"name"`
	Command     string    `json:"command"`
	Args        []string  `json:"args,omitempty"`
	UsePty      bool      `json:"usePty,omitempty"`
	InstalledAt time.Time `json:"installedAt,omitzero"`
}

// Document is the on-disk team configuration.
type Document struct {
	SchemaVersion int        `json:"schemaVersion"`
	Agents        []AgentDef `json:"agents"`
	Team          Team       `json:"team"`
	MaxRounds     int        `json:"maxRounds,omitempty"`
}

// LoadDocument reads and validates a team document from path.
// The file is JSON5, same as the rest of the configuration surface.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read team config: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument parses and validates a team document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json5.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse team config: %w", err)
	}
	if !SupportedSchemaVersions[doc.SchemaVersion] {
		return nil, fmt.Errorf("unsupported team config schemaVersion %d", doc.SchemaVersion)
	}

	known := make(map[string]bool, len(doc.Agents))
	for _, a := range doc.Agents {
		if a.Name == "" || a.Command == "" {
			return nil, fmt.Errorf("agent registry entry missing name or command")
		}
		known[a.Name] = true
	}
	if err := doc.Team.Validate(known); err != nil {
		return nil, err
	}
	return &doc, nil
}

// AgentByName returns the registry entry for an agent type, or nil.
func (d *Document) AgentByName(name string) *AgentDef {
	for i := range d.Agents {
		if d.Agents[i].Name == name {
			return &d.Agents[i]
		}
	}
	return nil
}
