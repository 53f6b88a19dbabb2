package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents either a User or Assistant message in a conversation.
// Tool results travel back to the model inside User messages.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"content"`
}

// UserText creates a user message holding a single text part.
func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{NewTextPart(text)}}
}

// UserResults bundles tool results into one user message.
func UserResults(results []*ToolResultPart) Message {
	parts := make([]Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, r)
	}
	return Message{Role: RoleUser, Parts: parts}
}

// Assistant creates an assistant message from response text followed by tool calls.
// Empty text is omitted.
func Assistant(text string, calls []*ToolCallPart) Message {
	parts := make([]Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, NewTextPart(text))
	}
	for _, c := range calls {
		parts = append(parts, c)
	}
	return Message{Role: RoleAssistant, Parts: parts}
}

// Text returns the concatenated text parts of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(*TextPart); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool-call parts of the message in order.
func (m Message) ToolCalls() []*ToolCallPart {
	var calls []*ToolCallPart
	for _, p := range m.Parts {
		if c, ok := p.(*ToolCallPart); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// ToolResults returns the tool-result parts of the message in order.
func (m Message) ToolResults() []*ToolResultPart {
	var results []*ToolResultPart
	for _, p := range m.Parts {
		if r, ok := p.(*ToolResultPart); ok {
			results = append(results, r)
		}
	}
	return results
}

// UnmarshalJSON decodes the polymorphic content parts.
func (m *Message) UnmarshalJSON(data []byte) error {
	var aux struct {
		Role  Role              `json:"role"`
		Parts []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.Role = aux.Role
	m.Parts = make([]Part, 0, len(aux.Parts))
	for i, raw := range aux.Parts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("content[%d]: %w", i, err)
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

// UnansweredToolCalls returns the ids of tool calls in history that have no
// matching tool result later in the sequence.
func UnansweredToolCalls(history []Message) []string {
	answered := make(map[string]bool)
	for _, msg := range history {
		for _, r := range msg.ToolResults() {
			answered[r.ID] = true
		}
	}

	var pending []string
	for _, msg := range history {
		for _, c := range msg.ToolCalls() {
			if !answered[c.ID] {
				pending = append(pending, c.ID)
			}
		}
	}
	return pending
}

// TokenUsage contains token usage statistics reported at the end of a stream.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}
