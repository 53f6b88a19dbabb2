package types

import (
	"encoding/json"
	"fmt"
)

// Part represents a component of a message.
type Part interface {
	PartType() string
}

const (
	PartText       = "text"
	PartReasoning  = "reasoning"
	PartToolCall   = "tool_call"
	PartToolResult = "tool_result"
)

// TextPart represents a text content part.
type TextPart struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (p *TextPart) PartType() string { return PartText }

// NewTextPart creates a text part.
func NewTextPart(text string) *TextPart {
	return &TextPart{Type: PartText, Text: text}
}

// ReasoningPart represents extended thinking/reasoning content.
type ReasoningPart struct {
	Type string `json:"type"` // always "reasoning"
	Text string `json:"text"`
}

func (p *ReasoningPart) PartType() string { return PartReasoning }

// NewReasoningPart creates a reasoning part.
func NewReasoningPart(text string) *ReasoningPart {
	return &ReasoningPart{Type: PartReasoning, Text: text}
}

// ToolCallPart is a model-issued request to invoke a local tool.
// CallID is a secondary identifier some backends attach in addition to ID.
type ToolCallPart struct {
	Type      string `json:"type"` // always "tool_call"
	ID        string `json:"id"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (p *ToolCallPart) PartType() string { return PartToolCall }

// NewToolCallPart creates a tool-call part.
func NewToolCallPart(id, callID, name, arguments string) *ToolCallPart {
	return &ToolCallPart{Type: PartToolCall, ID: id, CallID: callID, Name: name, Arguments: arguments}
}

// ToolResultPart is the outcome tied to a specific tool call id.
type ToolResultPart struct {
	Type    string `json:"type"` // always "tool_result"
	ID      string `json:"id"`
	CallID  string `json:"call_id,omitempty"`
	Content string `json:"content"`
}

func (p *ToolResultPart) PartType() string { return PartToolResult }

// ResultFor creates the result part answering call.
func ResultFor(call *ToolCallPart, content string) *ToolResultPart {
	return &ToolResultPart{Type: PartToolResult, ID: call.ID, CallID: call.CallID, Content: content}
}

// UnmarshalPart unmarshals a JSON part into the appropriate type.
func UnmarshalPart(data []byte) (Part, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var p Part
	switch raw.Type {
	case PartText:
		p = &TextPart{}
	case PartReasoning:
		p = &ReasoningPart{}
	case PartToolCall:
		p = &ToolCallPart{}
	case PartToolResult:
		p = &ToolResultPart{}
	default:
		return nil, fmt.Errorf("unknown part type %q", raw.Type)
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
