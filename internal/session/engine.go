package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"

	"github.com/dhth/agx/internal/cancel"
	"github.com/dhth/agx/internal/event"
	"github.com/dhth/agx/internal/logging"
	"github.com/dhth/agx/internal/permission"
	"github.com/dhth/agx/internal/provider"
	"github.com/dhth/agx/internal/tool"
	"github.com/dhth/agx/pkg/types"
)

const (
	// MaxRoundTrips caps the model requests made for one user prompt.
	MaxRoundTrips = 30
	// MaxStreamRetries is how many times opening a stream is retried.
	MaxStreamRetries = 2
	// RetryInitialInterval is the first wait before retrying a stream.
	RetryInitialInterval = 500 * time.Millisecond
	// RetryMaxInterval caps the wait between stream retries.
	RetryMaxInterval = 5 * time.Second
)

// Tool result texts for calls that did not run to completion.
const (
	resultRejected          = "user rejected tool call"
	resultSkippedRejected   = "tool call skipped because user rejected a previous tool call"
	resultFeedback          = "user rejected tool call with feedback: %s"
	resultSkippedFeedback   = "tool call skipped because user provided feedback on a previous tool call"
	resultInterrupted       = "tool call interrupted by user"
	resultSkippedInterrupt  = "tool call skipped because user interrupted a previous tool call"
	resultParseFailedFormat = "failed to parse tool call: %v"
)

// errInterrupted reports that the cancellation coordinator fired.
var errInterrupted = errors.New("interrupted")

// Config wires an Engine.
type Config struct {
	Provider provider.Provider
	Sandbox  *tool.Sandbox
	Gate     *permission.Gate
	Cancel   *cancel.Coordinator
	// Bus receives debug events. Nil disables them.
	Bus *event.Bus
	// Transcript receives a snapshot after each turn. Nil disables them.
	Transcript *Transcript
	// Context supplies AGENTS.md contents. Nil means none.
	Context    *ProjectContext
	ProjectDir string
	// Out receives everything the engine prints. Defaults to io.Discard.
	Out io.Writer
	// NewBackOff returns the retry policy for opening a stream.
	NewBackOff func() backoff.BackOff
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine owns one conversation and runs its turns. It is not safe for
// concurrent use; only Cancel may be triggered from other goroutines.
type Engine struct {
	provider   provider.Provider
	sandbox    *tool.Sandbox
	gate       *permission.Gate
	record     *permission.Record
	cancel     *cancel.Coordinator
	bus        *event.Bus
	transcript *Transcript
	context    *ProjectContext
	projectDir string
	out        io.Writer
	newBackOff func() backoff.BackOff
	now        func() time.Time

	history []types.Message
	tokens  int
}

// NewEngine creates an engine with an empty history.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		provider:   cfg.Provider,
		sandbox:    cfg.Sandbox,
		gate:       cfg.Gate,
		record:     cfg.Gate.Record(),
		cancel:     cfg.Cancel,
		bus:        cfg.Bus,
		transcript: cfg.Transcript,
		context:    cfg.Context,
		projectDir: cfg.ProjectDir,
		out:        cfg.Out,
		newBackOff: cfg.NewBackOff,
		now:        cfg.Now,
	}
	if e.cancel == nil {
		e.cancel = cancel.New()
	}
	if e.out == nil {
		e.out = io.Discard
	}
	if e.newBackOff == nil {
		e.newBackOff = defaultBackOff
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return b
}

// History returns a copy of the committed conversation.
func (e *Engine) History() []types.Message {
	return append([]types.Message(nil), e.history...)
}

// Tokens returns the context size last reported by the provider.
func (e *Engine) Tokens() int {
	return e.tokens
}

// Approvals returns the permission record consulted by the gate.
func (e *Engine) Approvals() *permission.Record {
	return e.record
}

// Provider returns the completion backend.
func (e *Engine) Provider() provider.Provider {
	return e.provider
}

// Cancel requests that the running turn stop. It reports false when a
// cancellation was already pending.
func (e *Engine) Cancel() bool {
	return e.cancel.Cancel()
}

// NewSession drops the conversation and starts a new transcript.
func (e *Engine) NewSession() {
	e.history = nil
	e.tokens = 0
	if e.transcript != nil {
		e.transcript.Rotate(e.now())
	}
	e.bus.Publish(event.NewSession())
	logging.Info().Msg("started new session")
}

// Preamble returns the system message for the next request.
func (e *Engine) Preamble() string {
	return BuildPreamble(SystemPrompt(), e.context.Content(), e.projectDir, e.now())
}

// RunTurn answers one user prompt. It returns once the model stops asking
// for tools, the user rejects a call or interrupts, a request fails, or
// MaxRoundTrips is reached. Failures are reported on the engine's output.
func (e *Engine) RunTurn(ctx context.Context, userText string) {
	e.cancel.Reset()
	defer e.finishTurn(ctx)

	prompt := types.UserText(userText)
	for round := 1; ; round++ {
		resp, err := e.streamResponse(ctx, prompt)
		if err != nil {
			if errors.Is(err, errInterrupted) {
				fmt.Fprintln(e.out, color.RedString("\ninterrupted (prompt discarded)"))
				e.bus.Publish(event.Interrupted())
			} else {
				logging.Error().Err(err).Int("round", round).Msg("completion failed")
				fmt.Fprintln(e.out, color.RedString("error: %v", err))
			}
			e.commitPendingResults(prompt)
			return
		}

		e.history = append(e.history, prompt)
		if resp.text != "" || len(resp.calls) > 0 {
			e.history = append(e.history, types.Assistant(resp.text, resp.calls))
		}
		if len(resp.calls) == 0 {
			return
		}

		results, stop := e.runBatch(ctx, resp.calls)
		if len(results) == 0 {
			return
		}
		prompt = types.UserResults(results)
		if stop {
			e.history = append(e.history, prompt)
			return
		}

		if round >= MaxRoundTrips {
			e.history = append(e.history, prompt)
			logging.Warn().Int("round_trips", round).Msg("round trip limit reached")
			fmt.Fprintln(e.out, color.YellowString("stopping: reached the limit of %d model requests for one prompt", MaxRoundTrips))
			return
		}
	}
}

// commitPendingResults keeps tool results whose round trip never completed,
// so that the calls they answer stay paired.
func (e *Engine) commitPendingResults(prompt types.Message) {
	if len(prompt.ToolResults()) > 0 {
		e.history = append(e.history, prompt)
	}
}

func (e *Engine) finishTurn(ctx context.Context) {
	e.bus.Publish(event.TurnComplete(e.history))

	if e.transcript == nil || len(e.history) == 0 {
		return
	}
	if err := e.transcript.Save(ctx, e.history, e.tokens); err != nil {
		logging.Error().Err(err).Str("session", e.transcript.Session()).Msg("couldn't save chat")
	}
}

// runBatch resolves every call in order. stop reports that the turn must end
// without sending the results to the model.
func (e *Engine) runBatch(ctx context.Context, calls []*types.ToolCallPart) (results []*types.ToolResultPart, stop bool) {
	results = make([]*types.ToolResultPart, 0, len(calls))
	push := func(call *types.ToolCallPart, content string) {
		r := types.ResultFor(call, content)
		e.bus.Publish(event.ToolResult(r))
		results = append(results, r)
	}
	skipRest := func(i int, reason string) {
		for _, call := range calls[i+1:] {
			push(call, reason)
		}
	}

	interrupted := func(i int, call *types.ToolCallPart) ([]*types.ToolResultPart, bool) {
		fmt.Fprintln(e.out, color.RedString("\ninterrupted"))
		push(call, resultInterrupted)
		e.bus.Publish(event.Interrupted())
		skipRest(i, resultSkippedInterrupt)
		return results, true
	}

	for i, call := range calls {
		// An interrupt between calls ends the batch before anything else runs.
		if e.cancel.IsCancelled() {
			return interrupted(i, call)
		}

		inv, err := tool.ParseCall(call.Name, call.Arguments)
		if err != nil {
			logging.Warn().Err(err).Str("tool", call.Name).Msg("couldn't parse tool call")
			push(call, fmt.Sprintf(resultParseFailedFormat, err))
			continue
		}

		if err := e.sandbox.Validate(inv); err != nil {
			fmt.Fprintln(e.out, tool.StatusLine(inv, nil, err, 0))
			fmt.Fprintln(e.out, color.RedString("error: %v", err))
			push(call, tool.ErrorContent(err))
			continue
		}

		conf, err := e.gate.Confirm(ctx, inv)
		if err != nil {
			fmt.Fprintln(e.out, color.RedString("error: %v", err))
			push(call, tool.ErrorContent(err))
			continue
		}

		switch conf.Decision {
		case permission.Approved, permission.AutoApproved:
			if e.cancel.IsCancelled() {
				return interrupted(i, call)
			}
			res, err := e.execute(ctx, inv)
			switch {
			case errors.Is(err, errInterrupted):
				return interrupted(i, call)
			case err != nil:
				fmt.Fprintln(e.out, color.RedString("error: %v", err))
				push(call, tool.ErrorContent(err))
			default:
				push(call, res.Output)
			}

		case permission.Rejected:
			fmt.Fprintln(e.out, color.RedString("conversation stopped"))
			push(call, resultRejected)
			skipRest(i, resultSkippedRejected)
			return results, true

		case permission.FeedbackProvided:
			fmt.Fprintln(e.out, color.RedString("tool call rejected; providing feedback to LLM"))
			push(call, fmt.Sprintf(resultFeedback, conf.Feedback))
			skipRest(i, resultSkippedFeedback)
			return results, false
		}
	}

	return results, false
}

type execOutcome struct {
	res *tool.Result
	err error
}

// execute runs inv until it finishes or the coordinator fires. On interrupt
// it waits for the invocation to wind down, which for a command means its
// process group has been killed.
func (e *Engine) execute(ctx context.Context, inv tool.Invocation) (*tool.Result, error) {
	done := e.cancel.Done()
	execCtx, stop := e.cancel.Context(ctx)
	defer stop()

	start := time.Now()
	ch := make(chan execOutcome, 1)
	go func() {
		res, err := e.sandbox.Execute(execCtx, inv)
		ch <- execOutcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		elapsed := time.Since(start)
		fmt.Fprintln(e.out, tool.StatusLine(inv, out.res, out.err, elapsed))
		logging.Debug().
			Str("tool", inv.Name()).
			Dur("elapsed", elapsed).
			AnErr("error", out.err).
			Msg("tool call finished")
		return out.res, out.err

	case <-done:
		stop()
		<-ch
		logging.Info().Str("tool", inv.Name()).Msg("tool call interrupted")
		return nil, errInterrupted
	}
}
