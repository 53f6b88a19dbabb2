// Package app assembles a complete agx session from configuration: provider,
// sandbox, permission gate, turn engine, REPL, and the optional debug server.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/dhth/agx/internal/cancel"
	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/debugserver"
	"github.com/dhth/agx/internal/event"
	"github.com/dhth/agx/internal/logging"
	"github.com/dhth/agx/internal/permission"
	"github.com/dhth/agx/internal/provider"
	"github.com/dhth/agx/internal/repl"
	"github.com/dhth/agx/internal/session"
	"github.com/dhth/agx/internal/tool"
)

// EventBufferSize bounds each debug subscriber's queue.
const EventBufferSize = 1024

// Options are the process-level inputs of an App.
type Options struct {
	Config *config.Config
	Paths  *config.Paths
	In     io.Reader
	Out    io.Writer
	// Banner prints the logo when the REPL starts.
	Banner bool
}

// App is one assembled session.
type App struct {
	cfg     *config.Config
	out     io.Writer
	engine  *session.Engine
	repl    *repl.REPL
	bus     *event.Bus
	bridge  *event.Bridge
	debug   *debugserver.Server
	watcher *session.ContextWatcher
}

// New wires every component. Close must be called when New succeeds.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workDir := cfg.ProjectDir

	a := &App{cfg: cfg, out: opts.Out}

	projectContext, err := session.LoadProjectContext(workDir)
	if err != nil {
		return nil, err
	}

	store := permission.NewStore(workDir)
	patterns, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	llm, err := provider.New(ctx, cfg, tool.Definitions())
	if err != nil {
		return nil, err
	}

	coordinator := cancel.New()
	input := repl.NewInput(opts.In, opts.Out, coordinator)
	sandbox := tool.NewSandbox(workDir, cfg.ProtectedPaths)
	gate := permission.NewGate(
		permission.NewRecord(patterns),
		sandbox,
		input,
		opts.Out,
		permission.WithStore(store),
		permission.WithSkipConfirmation(cfg.SkipConfirmation),
	)

	if cfg.DebugServer {
		a.bus = event.NewBus(EventBufferSize)
		a.bridge = event.NewBridge(a.bus)
		a.debug = debugserver.New(cfg.DebugAddr, a.bridge)
		if err := a.debug.Start(); err != nil {
			a.Close()
			return nil, err
		}
	}

	if w, err := session.NewContextWatcher(projectContext); err != nil {
		logging.Warn().Err(err).Msg("couldn't watch project context")
	} else {
		a.watcher = w
		a.watcher.Start()
	}

	a.engine = session.NewEngine(session.Config{
		Provider:   llm,
		Sandbox:    sandbox,
		Gate:       gate,
		Cancel:     coordinator,
		Bus:        a.bus,
		Transcript: session.NewTranscript(opts.Paths.ChatsDir(workDir), time.Now()),
		Context:    projectContext,
		ProjectDir: workDir,
		Out:        opts.Out,
	})

	a.repl = repl.New(repl.Config{
		Engine:       a.engine,
		Input:        input,
		Out:          opts.Out,
		ProviderName: cfg.Provider,
		ModelName:    cfg.Model,
		ProjectDir:   workDir,
		HistoryFile:  opts.Paths.HistoryFile(workDir),
		Banner:       opts.Banner,
	})

	return a, nil
}

// Engine returns the turn engine.
func (a *App) Engine() *session.Engine {
	return a.engine
}

// DebugURL returns the debug viewer URL, or "" when the server is off.
func (a *App) DebugURL() string {
	if a.debug == nil {
		return ""
	}
	return a.debug.URL()
}

// Run starts the REPL and blocks until the user quits.
func (a *App) Run(ctx context.Context) error {
	if url := a.DebugURL(); url != "" {
		fmt.Fprintln(a.out, color.YellowString("debug UI available at %s", url))
	}
	if a.cfg.SkipConfirmation {
		fmt.Fprintln(a.out, color.RedString("WARNING: tool calls will run without confirmation"))
	}

	logging.Info().
		Str("provider", a.cfg.Provider).
		Str("model", a.cfg.Model).
		Str("dir", a.cfg.ProjectDir).
		Msg("starting session")
	return a.repl.Run(ctx)
}

// Close releases the watcher and the debug server.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.debug != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.debug.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("debug server shutdown failed")
		}
	}
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	return nil
}
