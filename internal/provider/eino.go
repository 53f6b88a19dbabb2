package provider

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"

	"github.com/dhth/agx/internal/logging"
	"github.com/dhth/agx/pkg/types"
)

// EinoProvider adapts an eino chat model to Provider.
type EinoProvider struct {
	id        string
	model     string
	chatModel model.ToolCallingChatModel
	opts      []model.Option
}

// NewEinoProvider binds tools to chatModel and wraps it.
func NewEinoProvider(id, modelName string, chatModel model.ToolCallingChatModel, tools []*schema.ToolInfo, opts ...model.Option) (*EinoProvider, error) {
	if len(tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	return &EinoProvider{
		id:        id,
		model:     modelName,
		chatModel: chatModel,
		opts:      opts,
	}, nil
}

func (p *EinoProvider) ID() string    { return p.id }
func (p *EinoProvider) Model() string { return p.model }

// Stream starts a streaming completion.
func (p *EinoProvider) Stream(ctx context.Context, req *Request) (Stream, error) {
	reader, err := p.chatModel.Stream(ctx, ToEinoMessages(req), p.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return &einoStream{reader: reader}, nil
}

// einoStream turns eino message chunks into Chunks. Text and reasoning are
// forwarded as they arrive; tool calls arrive as argument fragments and are
// only emitted, complete, once the underlying stream ends.
type einoStream struct {
	reader  *schema.StreamReader[*schema.Message]
	chunks  []*schema.Message
	pending []Chunk
	done    bool
}

func (s *einoStream) Recv() (Chunk, error) {
	for {
		if len(s.pending) > 0 {
			c := s.pending[0]
			s.pending = s.pending[1:]
			return c, nil
		}
		if s.done {
			return Chunk{}, io.EOF
		}

		msg, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			if err := s.finish(); err != nil {
				return Chunk{}, err
			}
			continue
		}
		if err != nil {
			return Chunk{}, err
		}
		if msg == nil {
			continue
		}

		s.chunks = append(s.chunks, msg)
		if msg.ReasoningContent != "" {
			s.pending = append(s.pending, Chunk{Kind: ChunkReasoning, Text: msg.ReasoningContent})
		}
		if msg.Content != "" {
			s.pending = append(s.pending, Chunk{Kind: ChunkText, Text: msg.Content})
		}
	}
}

func (s *einoStream) finish() error {
	if len(s.chunks) == 0 {
		s.pending = append(s.pending, Chunk{Kind: ChunkDone})
		return nil
	}

	full, err := schema.ConcatMessages(s.chunks)
	if err != nil {
		return fmt.Errorf("couldn't assemble response: %w", err)
	}

	for _, tc := range full.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + ulid.MustNew(ulid.Now(), rand.Reader).String()
		}
		s.pending = append(s.pending, Chunk{
			Kind:     ChunkToolCall,
			ToolCall: types.NewToolCallPart(id, "", tc.Function.Name, tc.Function.Arguments),
		})
	}

	done := Chunk{Kind: ChunkDone}
	if full.ResponseMeta != nil && full.ResponseMeta.Usage != nil {
		u := full.ResponseMeta.Usage
		done.Usage = &types.TokenUsage{
			Input:  u.PromptTokens,
			Output: u.CompletionTokens,
			Total:  u.TotalTokens,
		}
		logging.Debug().
			Int("input", u.PromptTokens).
			Int("output", u.CompletionTokens).
			Str("finish_reason", full.ResponseMeta.FinishReason).
			Msg("stream finished")
	}
	s.pending = append(s.pending, done)
	return nil
}

func (s *einoStream) Close() {
	s.reader.Close()
}
