// Package provider streams completions from an LLM backend.
//
// The session talks to a Provider and never to a concrete SDK. EinoProvider
// adapts any eino ToolCallingChatModel, and New builds one for the configured
// backend:
//
//   - openai, openrouter and gemini use the OpenAI chat completions API
//   - github-copilot exchanges the GitHub token for a short lived Copilot
//     token, then talks to the OpenAI-compatible endpoint it returns
//   - anthropic uses the Messages API
//   - ark uses Volcengine ARK
//
// # Streaming
//
// A Stream yields text and reasoning fragments as they arrive. Tool calls are
// streamed by most backends as argument fragments; they are assembled and
// emitted whole once the backend finishes, followed by a single ChunkDone
// carrying token usage when the backend reports it:
//
//	stream, err := p.Stream(ctx, &provider.Request{
//	    System:  preamble,
//	    History: history,
//	    Prompt:  types.UserText("list the files here"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    chunk, err := stream.Recv()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
package provider
