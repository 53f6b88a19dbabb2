package provider

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/dhth/agx/pkg/types"
)

// ToEinoMessages converts a request into the message list sent to the model:
// the system preamble, the history, then the pending prompt.
func ToEinoMessages(req *Request) []*schema.Message {
	out := make([]*schema.Message, 0, len(req.History)+2)
	if req.System != "" {
		out = append(out, schema.SystemMessage(req.System))
	}
	for _, msg := range req.History {
		out = append(out, convertMessage(msg)...)
	}
	return append(out, convertMessage(req.Prompt)...)
}

// convertMessage maps one conversation message onto eino messages. Tool
// results become one tool-role message each; reasoning is not replayed.
func convertMessage(msg types.Message) []*schema.Message {
	switch msg.Role {
	case types.RoleAssistant:
		var calls []schema.ToolCall
		for _, c := range msg.ToolCalls() {
			calls = append(calls, schema.ToolCall{
				ID:   c.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      c.Name,
					Arguments: normalizeArguments(c.Arguments),
				},
			})
		}
		return []*schema.Message{schema.AssistantMessage(msg.Text(), calls)}

	default:
		var out []*schema.Message
		var text strings.Builder
		for _, p := range msg.Parts {
			switch part := p.(type) {
			case *types.TextPart:
				text.WriteString(part.Text)
			case *types.ToolResultPart:
				out = append(out, schema.ToolMessage(part.Content, part.ID))
			}
		}
		if text.Len() > 0 {
			out = append(out, schema.UserMessage(text.String()))
		}
		return out
	}
}

func normalizeArguments(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	return args
}
