package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"

	"github.com/dhth/agx/internal/event"
	"github.com/dhth/agx/internal/logging"
	"github.com/dhth/agx/internal/provider"
	"github.com/dhth/agx/pkg/types"
)

// response is what one completion produced.
type response struct {
	text  string
	calls []*types.ToolCallPart
}

type recvResult struct {
	chunk provider.Chunk
	err   error
}

// streamResponse requests a completion for prompt and consumes it, racing
// every item against the cancellation coordinator.
func (e *Engine) streamResponse(ctx context.Context, prompt types.Message) (*response, error) {
	done := e.cancel.Done()
	streamCtx, stop := e.cancel.Context(ctx)
	defer stop()

	req := &provider.Request{
		System:  e.Preamble(),
		History: e.history,
		Prompt:  prompt,
	}

	stream, err := e.openStream(streamCtx, req)
	if err != nil {
		if e.cancel.IsCancelled() {
			return nil, errInterrupted
		}
		return nil, err
	}
	defer func() {
		stop()
		stream.Close()
	}()

	e.bus.Publish(event.LLMRequest(prompt, e.history))

	items := make(chan recvResult)
	go func() {
		defer close(items)
		for {
			chunk, err := stream.Recv()
			select {
			case items <- recvResult{chunk: chunk, err: err}:
			case <-streamCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var (
		resp      response
		text      strings.Builder
		reasoning strings.Builder
	)
	flushReasoning := func() {
		if reasoning.Len() == 0 {
			return
		}
		e.bus.Publish(event.Reasoning(reasoning.String()))
		reasoning.Reset()
	}

	for {
		var item recvResult
		select {
		case <-done:
			return nil, errInterrupted
		case r, ok := <-items:
			if !ok {
				return nil, errInterrupted
			}
			item = r
		}

		if errors.Is(item.err, io.EOF) {
			flushReasoning()
			resp.text = text.String()
			return &resp, nil
		}
		if item.err != nil {
			if e.cancel.IsCancelled() {
				return nil, errInterrupted
			}
			return nil, fmt.Errorf("couldn't read completion stream: %w", item.err)
		}

		chunk := item.chunk
		if chunk.Kind != provider.ChunkReasoning {
			flushReasoning()
		}

		switch chunk.Kind {
		case provider.ChunkText:
			if text.Len() == 0 {
				fmt.Fprintln(e.out)
			}
			fmt.Fprint(e.out, chunk.Text)
			text.WriteString(chunk.Text)

		case provider.ChunkReasoning:
			if reasoning.Len() == 0 {
				fmt.Fprint(e.out, "\n", color.CyanString("[reasoning] "))
			}
			fmt.Fprint(e.out, color.CyanString("%s", chunk.Text))
			reasoning.WriteString(chunk.Text)

		case provider.ChunkToolCall:
			e.bus.Publish(event.ToolCall(chunk.ToolCall))
			resp.calls = append(resp.calls, chunk.ToolCall)

		case provider.ChunkDone:
			if chunk.Usage != nil {
				e.tokens = chunk.Usage.Total
			}
			if text.Len() > 0 {
				e.bus.Publish(event.AssistantText(text.String()))
			}
			e.bus.Publish(event.StreamComplete())
			fmt.Fprintln(e.out)
		}
	}
}

// openStream starts a completion, retrying transient failures with
// exponential backoff. Cancellation stops the retries.
func (e *Engine) openStream(ctx context.Context, req *provider.Request) (provider.Stream, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), MaxStreamRetries), ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (provider.Stream, error) {
		attempt++
		stream, err := e.provider.Stream(ctx, req)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return stream, err
	}, policy, func(err error, wait time.Duration) {
		logging.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("couldn't start completion stream; retrying")
	})
}
