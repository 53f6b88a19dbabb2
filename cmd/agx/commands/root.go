// Package commands provides the CLI commands for agx.
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dhth/agx/internal/app"
	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs   bool
	logLevel    string
	projectDir  string
	debugServer bool
)

var rootCmd = &cobra.Command{
	Use:   "agx",
	Short: "agx is a terminal coding assistant",
	Long: `agx is a terminal coding assistant. It streams answers from an LLM and
lets the model read, create and edit files and run commands in the current
project, asking before anything changes.

The backend is configured through the environment (or a .env file):
  PROVIDER     anthropic, gemini, github-copilot, openai, openrouter or ark
  API_KEY      key for the provider
  MODEL_NAME   model to use
  BASE_URL     optional endpoint override`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runREPL,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "directory", "d", "", "Project directory")
	rootCmd.Flags().BoolVar(&debugServer, "debug-server", false, "Serve a debug event viewer")

	rootCmd.SetVersionTemplate(fmt.Sprintf("agx %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the project directory from the flag or the current
// directory, as an absolute path.
func GetWorkDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}

// initLogging sends logs to the log file unless --print-logs is set.
func initLogging(cfg *config.Config, paths *config.Paths) (io.Closer, error) {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(level)
	if printLogs {
		logCfg.Pretty = true
	} else {
		logCfg.LogToFile = true
		logCfg.LogDir = paths.LogDir()
	}
	return logging.Init(logCfg)
}

func runREPL(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if debugServer {
		cfg.DebugServer = true
	}

	closer, err := initLogging(cfg, paths)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	a, err := app.New(ctx, app.Options{
		Config: cfg,
		Paths:  paths,
		In:     os.Stdin,
		Out:    os.Stdout,
		Banner: isatty.IsTerminal(os.Stdout.Fd()),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}
