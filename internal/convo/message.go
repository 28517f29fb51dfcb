// Package convo owns the ordered message log, the shared team task, and the
// context manager that materializes per-turn context under a byte budget.
package convo

import (
	"time"

	"github.com/nextlevelbuilder/agentchat/internal/markers"
	"github.com/nextlevelbuilder/agentchat/internal/team"
)

// Speaker identifies who produced a message.
type Speaker struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName,omitempty"`
	Type        team.MemberType `json:"type"`
}

// Routing carries the parsed routing outcome attached to a message.
type Routing struct {
	RawNextMarkers     []string           `json:"rawNextMarkers,omitempty"`
	ResolvedAddressees []string           `json:"resolvedAddressees,omitempty"`
	ParsedAddressees   []markers.Addressee `json:"parsedAddressees,omitempty"`
	ParentMessageID    string             `json:"parentMessageId,omitempty"`
	Intent             markers.Intent     `json:"intent,omitempty"`
	DropTargets        []string           `json:"dropTargets,omitempty"`
}

// Message is one entry in the conversation log. The id is assigned by the
// log on admission (monotone msg-N) and never mutated.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Speaker   Speaker   `json:"speaker"`
	Routing   *Routing  `json:"routing,omitempty"`
}
