package permission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dhth/agx/internal/logging"
	"github.com/dhth/agx/internal/tool"
)

// Decision is the outcome of asking for confirmation.
type Decision int

const (
	Approved Decision = iota
	AutoApproved
	Rejected
	FeedbackProvided
)

func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case AutoApproved:
		return "auto-approved"
	case Rejected:
		return "rejected"
	case FeedbackProvided:
		return "feedback"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Confirmation is the gate's answer for one invocation. Feedback is set
// only for FeedbackProvided.
type Confirmation struct {
	Decision Decision
	Feedback string
}

// Prompter reads one line of user input after showing prompt.
// io.EOF means the user closed input.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// Previewer renders what an invocation will change.
type Previewer interface {
	Preview(inv tool.Invocation) (string, error)
}

// Gate decides whether a tool invocation may run.
type Gate struct {
	record    *Record
	store     *Store
	previewer Previewer
	prompter  Prompter
	out       io.Writer
	skip      bool
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithStore persists command approvals through store.
func WithStore(store *Store) GateOption {
	return func(g *Gate) {
		g.store = store
	}
}

// WithSkipConfirmation approves every invocation without asking.
func WithSkipConfirmation(skip bool) GateOption {
	return func(g *Gate) {
		g.skip = skip
	}
}

// NewGate creates a gate over record. Prompts and previews are written to out.
func NewGate(record *Record, previewer Previewer, prompter Prompter, out io.Writer, opts ...GateOption) *Gate {
	g := &Gate{
		record:    record,
		previewer: previewer,
		prompter:  prompter,
		out:       out,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Record returns the approvals the gate consults.
func (g *Gate) Record() *Record {
	return g.record
}

// Confirm returns the decision for inv, blocking on user input when no
// recorded approval covers it. An error means the preview could not be
// rendered; the invocation must not run.
func (g *Gate) Confirm(ctx context.Context, inv tool.Invocation) (Confirmation, error) {
	if !tool.NeedsConfirmation(inv) {
		return Confirmation{Decision: Approved}, nil
	}

	if g.skip {
		return Confirmation{Decision: Approved}, nil
	}

	if g.isApproved(inv) {
		logging.Debug().Str("call", inv.Repr()).Msg("tool call auto-approved")
		return Confirmation{Decision: AutoApproved}, nil
	}

	preview, err := g.previewer.Preview(inv)
	if err != nil {
		return Confirmation{}, err
	}

	fmt.Fprintln(g.out, color.HiMagentaString("[request for tool-call] %s", inv.Repr()))
	if preview != "" {
		fmt.Fprintln(g.out, preview)
	}

	input, err := g.prompter.Prompt(confirmationPrompt(inv))
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logging.Warn().Err(err).Msg("couldn't read confirmation")
		}
		return Confirmation{Decision: Rejected}, nil
	}

	switch answer := strings.TrimSpace(input); answer {
	case "", "y":
		return Confirmation{Decision: Approved}, nil
	case "a":
		g.saveApproval(ctx, inv)
		return Confirmation{Decision: AutoApproved}, nil
	case "n", "no":
		return Confirmation{Decision: Rejected}, nil
	default:
		return Confirmation{Decision: FeedbackProvided, Feedback: answer}, nil
	}
}

func (g *Gate) isApproved(inv tool.Invocation) bool {
	switch i := inv.(type) {
	case tool.CreateFile, tool.EditFile:
		return g.record.FileChangesApproved()
	case tool.RunCommand:
		return g.record.IsCommandApproved(i.Command)
	default:
		return true
	}
}

func (g *Gate) saveApproval(ctx context.Context, inv tool.Invocation) {
	switch i := inv.(type) {
	case tool.CreateFile, tool.EditFile:
		g.record.ApproveFileChanges()
		fmt.Fprintln(g.out, color.GreenString("will not ask for confirmation for creating/editing files from now on"))

	case tool.RunCommand:
		pattern, added, err := g.record.ApproveCommand(i.Command)
		if err != nil {
			logging.Debug().Err(err).Str("command", i.Command).Msg("command has no pattern to approve")
			return
		}
		if added && g.store != nil {
			if err := g.store.Save(ctx, g.record.Commands()); err != nil {
				logging.Error().Err(err).Msg("couldn't persist command approval")
				fmt.Fprintln(g.out, color.RedString("error: %v", err))
			}
		}
		fmt.Fprintln(g.out, color.GreenString("will not ask for confirmation for running %q commands from now on", pattern.String()))
	}
}

func confirmationPrompt(inv tool.Invocation) string {
	approvalLine := "to always approve this tool call"
	switch i := inv.(type) {
	case tool.CreateFile, tool.EditFile:
		approvalLine = "to allow all edits in this session"
	case tool.RunCommand:
		if p, err := ParsePattern(i.Command); err == nil {
			approvalLine = fmt.Sprintf("to always allow %q commands", p.String())
		}
	}

	return fmt.Sprintf(`
type:
- y / <enter> to proceed
- a           %s
- n / no      to reject
- reject and provide feedback: `, approvalLine)
}
