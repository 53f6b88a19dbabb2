package provider

import (
	"context"

	"github.com/dhth/agx/pkg/types"
)

// Request is one completion request.
type Request struct {
	// System is the preamble sent ahead of the conversation.
	System string
	// History is the committed conversation so far.
	History []types.Message
	// Prompt is the pending user message: text or a bundle of tool results.
	Prompt types.Message
}

// ChunkKind discriminates a Chunk.
type ChunkKind int

const (
	// ChunkText carries a fragment of response text.
	ChunkText ChunkKind = iota
	// ChunkReasoning carries a fragment of model reasoning.
	ChunkReasoning
	// ChunkToolCall carries one complete tool call.
	ChunkToolCall
	// ChunkDone ends the response and may carry token usage.
	ChunkDone
)

// Chunk is one item of a completion stream.
type Chunk struct {
	Kind     ChunkKind
	Text     string
	ToolCall *types.ToolCallPart
	Usage    *types.TokenUsage
}

// Stream yields chunks until Recv returns io.EOF.
type Stream interface {
	Recv() (Chunk, error)
	Close()
}

// Provider is a completion backend.
type Provider interface {
	// ID returns the provider identifier, e.g. "anthropic".
	ID() string
	// Model returns the model requests are sent to.
	Model() string
	// Stream starts a streaming completion.
	Stream(ctx context.Context, req *Request) (Stream, error)
}
