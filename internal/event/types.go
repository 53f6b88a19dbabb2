package event

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dhth/agx/pkg/types"
)

// Kind discriminates the payload of an Event.
type Kind string

const (
	KindLLMRequest     Kind = "llm_request"
	KindAssistantText  Kind = "assistant_text"
	KindToolCall       Kind = "tool_call"
	KindReasoning      Kind = "reasoning"
	KindToolResult     Kind = "tool_result"
	KindStreamComplete Kind = "stream_complete"
	KindTurnComplete   Kind = "turn_complete"
	KindInterrupted    Kind = "interrupted"
	KindNewSession     Kind = "new_session"
)

// Event is an immutable lifecycle record of a session. Only the fields
// relevant to Kind are set; the rest are omitted from JSON.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`

	Prompt     *types.Message        `json:"prompt,omitempty"`
	History    []types.Message       `json:"history,omitempty"`
	Text       string                `json:"text,omitempty"`
	ToolCall   *types.ToolCallPart   `json:"tool_call,omitempty"`
	ToolResult *types.ToolResultPart `json:"tool_result,omitempty"`
}

func newEvent(kind Kind) Event {
	now := time.Now().UTC()
	return Event{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Timestamp: now,
		Kind:      kind,
	}
}

// LLMRequest records a completion request about to be streamed.
func LLMRequest(prompt types.Message, history []types.Message) Event {
	e := newEvent(KindLLMRequest)
	e.Prompt = &prompt
	e.History = cloneHistory(history)
	return e
}

// AssistantText records the full text of one streamed response.
func AssistantText(text string) Event {
	e := newEvent(KindAssistantText)
	e.Text = text
	return e
}

// ToolCall records a tool call requested by the model.
func ToolCall(call *types.ToolCallPart) Event {
	e := newEvent(KindToolCall)
	c := *call
	e.ToolCall = &c
	return e
}

// Reasoning records a reasoning fragment.
func Reasoning(text string) Event {
	e := newEvent(KindReasoning)
	e.Text = text
	return e
}

// ToolResult records a result folded back into the conversation.
func ToolResult(result *types.ToolResultPart) Event {
	e := newEvent(KindToolResult)
	r := *result
	e.ToolResult = &r
	return e
}

// StreamComplete marks the end of one completion stream.
func StreamComplete() Event {
	return newEvent(KindStreamComplete)
}

// TurnComplete records the conversation after a turn ends.
func TurnComplete(history []types.Message) Event {
	e := newEvent(KindTurnComplete)
	e.History = cloneHistory(history)
	return e
}

// Interrupted marks a user interrupt.
func Interrupted() Event {
	return newEvent(KindInterrupted)
}

// NewSession marks the start of a fresh conversation.
func NewSession() Event {
	return newEvent(KindNewSession)
}

// cloneHistory copies the message slice so later appends by the session do
// not show through. Parts are never mutated once appended.
func cloneHistory(history []types.Message) []types.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]types.Message, len(history))
	for i, m := range history {
		out[i] = types.Message{Role: m.Role, Parts: append([]types.Part(nil), m.Parts...)}
	}
	return out
}
