package runner

import (
	"encoding/json"
	"strings"

	"github.com/nextlevelbuilder/agentchat/internal/prompt"
	"github.com/nextlevelbuilder/agentchat/pkg/protocol"
)

// streamParser converts one stdout line into zero or more normalized events.
// Parsers are stateless per turn; a fresh one is created for each spawn.
type streamParser interface {
	ParseLine(line string) []Event
}

func newParser(family string) streamParser {
	switch family {
	case prompt.FamilyClaudeCode:
		return &claudeParser{}
	case prompt.FamilyOpenAICodex:
		return &codexParser{}
	case prompt.FamilyGemini:
		return &geminiParser{}
	}
	return &plainParser{}
}

// --- claude-code: `claude -p --output-format stream-json` ---

type claudeParser struct{}

type claudeLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
	Message struct {
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Thinking string `json:"thinking"`
		} `json:"content"`
	} `json:"message"`
}

func (p *claudeParser) ParseLine(line string) []Event {
	var l claudeLine
	if err := json.Unmarshal([]byte(line), &l); err != nil {
		return []Event{{Type: protocol.AgentEventSystem, Text: line}}
	}

	switch l.Type {
	case "system":
		return []Event{{Type: protocol.AgentEventSystem, Text: l.Subtype}}
	case "assistant":
		var evs []Event
		for _, c := range l.Message.Content {
			switch c.Type {
			case "text":
				if c.Text != "" {
					evs = append(evs, Event{Type: protocol.AgentEventText, Category: "stream", Text: c.Text})
				}
			case "thinking":
				if c.Thinking != "" {
					evs = append(evs, Event{Type: protocol.AgentEventReasoning, Text: c.Thinking})
				}
			}
		}
		return evs
	case "result":
		evs := []Event{{Type: protocol.AgentEventText, Category: "result", Text: l.Result}}
		reason := protocol.FinishDone
		if l.IsError {
			reason = protocol.FinishError
		}
		return append(evs, Event{Type: protocol.AgentEventTurnCompleted, FinishReason: reason})
	}
	return []Event{{Type: protocol.AgentEventSystem, Text: l.Type}}
}

// --- openai-codex: `codex exec --json` ---

type codexParser struct{}

type codexLine struct {
	Msg struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Text    string `json:"text"`
	} `json:"msg"`
}

func (p *codexParser) ParseLine(line string) []Event {
	var l codexLine
	if err := json.Unmarshal([]byte(line), &l); err != nil || l.Msg.Type == "" {
		return []Event{{Type: protocol.AgentEventSystem, Text: line}}
	}

	switch l.Msg.Type {
	case "agent_message":
		return []Event{{Type: protocol.AgentEventText, Category: "message", Text: l.Msg.Message}}
	case "agent_reasoning":
		return []Event{{Type: protocol.AgentEventReasoning, Text: l.Msg.Text}}
	case "task_complete":
		return []Event{{Type: protocol.AgentEventTurnCompleted, FinishReason: protocol.FinishDone}}
	case "error":
		return []Event{
			{Type: protocol.AgentEventError, Code: "codex", Message: l.Msg.Message},
			{Type: protocol.AgentEventTurnCompleted, FinishReason: protocol.FinishError},
		}
	}
	return []Event{{Type: protocol.AgentEventSystem, Text: l.Msg.Type}}
}

// --- google-gemini: `gemini --output-format stream-json` ---

type geminiParser struct{}

type geminiLine struct {
	Type     string `json:"type"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	Text     string `json:"text"`
	Response string `json:"response"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *geminiParser) ParseLine(line string) []Event {
	var l geminiLine
	if err := json.Unmarshal([]byte(line), &l); err != nil {
		return []Event{{Type: protocol.AgentEventSystem, Text: line}}
	}

	if l.Error != nil {
		return []Event{
			{Type: protocol.AgentEventError, Code: l.Error.Code, Message: l.Error.Message},
			{Type: protocol.AgentEventTurnCompleted, FinishReason: protocol.FinishError},
		}
	}
	// Single-object mode emits the whole reply under "response".
	if l.Response != "" {
		return []Event{
			{Type: protocol.AgentEventText, Category: "message", Text: l.Response},
			{Type: protocol.AgentEventTurnCompleted, FinishReason: protocol.FinishDone},
		}
	}

	switch l.Type {
	case "message", "assistant":
		text := l.Content
		if text == "" {
			text = l.Text
		}
		if text == "" {
			return nil
		}
		return []Event{{Type: protocol.AgentEventText, Category: "message", Text: text}}
	case "result":
		return []Event{{Type: protocol.AgentEventTurnCompleted, FinishReason: protocol.FinishDone}}
	}
	return []Event{{Type: protocol.AgentEventSystem, Text: l.Type}}
}

// --- fallback: plain text, one event per non-empty line ---

type plainParser struct{}

func (p *plainParser) ParseLine(line string) []Event {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return []Event{{Type: protocol.AgentEventText, Category: "message", Text: line}}
}
