// Package repl is the interactive front end: it reads prompts, dispatches
// session commands, and forwards everything else to the turn engine.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/fatih/color"

	"github.com/dhth/agx/internal/logging"
	"github.com/dhth/agx/internal/permission"
	"github.com/dhth/agx/internal/session"
)

const clearScreen = "\033[H\033[2J"

// Engine is the part of session.Engine the REPL drives.
type Engine interface {
	RunTurn(ctx context.Context, userText string)
	NewSession()
	Cancel() bool
	Tokens() int
	Approvals() *permission.Record
}

// Config wires a REPL.
type Config struct {
	Engine Engine
	Input  *Input
	Out    io.Writer

	ProviderName string
	ModelName    string
	ProjectDir   string
	// HistoryFile receives every prompt. Empty disables it.
	HistoryFile string
	// Banner is printed once on start.
	Banner bool
}

// REPL runs the read-eval-print loop.
type REPL struct {
	engine      Engine
	input       *Input
	out         io.Writer
	provider    string
	model       string
	projectDir  string
	historyFile string
	banner      bool

	newlineBeforeStatus bool
}

// New creates a REPL.
func New(cfg Config) *REPL {
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	return &REPL{
		engine:      cfg.Engine,
		input:       cfg.Input,
		out:         out,
		provider:    cfg.ProviderName,
		model:       cfg.ModelName,
		projectDir:  cfg.ProjectDir,
		historyFile: cfg.HistoryFile,
		banner:      cfg.Banner,
	}
}

// Run loops until the user quits, input ends, or an interrupt arrives at the
// idle prompt. SIGINT during a turn cancels the turn.
func (r *REPL) Run(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-sigs:
				r.Interrupt()
			case <-stop:
				return
			}
		}
	}()

	return r.loop(ctx)
}

// Interrupt cancels the running turn, or the idle prompt.
func (r *REPL) Interrupt() {
	if !r.engine.Cancel() {
		logging.Debug().Msg("interrupt already pending")
		fmt.Fprintln(r.out, color.YellowString("\nalready interrupting; please wait"))
	}
}

func (r *REPL) loop(ctx context.Context) error {
	if r.banner {
		fmt.Fprintf(r.out, "\n%s\n", color.MagentaString(banner))
	}

	promptMarker := color.HiBlueString("> ")
	for {
		if ctx.Err() != nil {
			return nil
		}

		prefix := ""
		if r.newlineBeforeStatus {
			prefix = "\n"
		}
		r.newlineBeforeStatus = true
		fmt.Fprintf(r.out, "%s%s\n", prefix, r.statusLine())

		text, err := r.input.ReadLine(promptMarker)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, ErrInterrupted):
			return nil
		case err != nil:
			return fmt.Errorf("couldn't read input: %w", err)
		}

		if quit := r.handle(ctx, strings.TrimSpace(text)); quit {
			return nil
		}
	}
}

// handle processes one line of input and reports whether to quit.
func (r *REPL) handle(ctx context.Context, text string) bool {
	switch text {
	case "":
	case "clear":
		fmt.Fprint(r.out, clearScreen)
		r.newlineBeforeStatus = false
	case "/help":
		fmt.Fprint(r.out, color.GreenString(helpText))
	case "/new":
		r.engine.NewSession()
		fmt.Fprint(r.out, clearScreen)
		r.newlineBeforeStatus = false
	case "/approvals":
		fmt.Fprint(r.out, color.GreenString(r.engine.Approvals().String()))
	case "/quit", "/exit", "bye", ":q":
		return true
	default:
		if strings.HasPrefix(text, "/") && !strings.Contains(text, " ") {
			r.unknownCommand(text)
			return false
		}
		if r.historyFile != "" {
			if err := appendHistory(r.historyFile, text); err != nil {
				logging.Warn().Err(err).Msg("couldn't save input history")
			}
		}
		r.engine.RunTurn(ctx, text)
	}
	return false
}

func (r *REPL) unknownCommand(text string) {
	msg := fmt.Sprintf("unknown command %q", text)
	if s := suggestCommand(text); s != "" {
		msg += fmt.Sprintf("; did you mean %q?", s)
	} else {
		msg += "; type /help to see the available commands"
	}
	fmt.Fprintln(r.out, color.RedString(msg))
}

func (r *REPL) statusLine() string {
	line := color.YellowString("[%s/%s]", r.provider, r.model) + "  " + color.BlueString(r.projectDir)
	if tokens := r.engine.Tokens(); tokens > 0 {
		line += color.GreenString("  ~%s tokens", session.TokenRepr(tokens))
	}
	return line
}

// slashCommands are the commands that start with "/".
var slashCommands = []string{"/approvals", "/exit", "/help", "/new", "/quit"}

const maxSuggestionDistance = 3

func suggestCommand(text string) string {
	type candidate struct {
		name string
		dist int
	}
	var candidates []candidate
	for _, c := range slashCommands {
		if d := levenshtein.ComputeDistance(text, c); d <= maxSuggestionDistance {
			candidates = append(candidates, candidate{c, d})
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	return candidates[0].name
}
