package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Supported completion backends.
const (
	ProviderAnthropic     = "anthropic"
	ProviderGemini        = "gemini"
	ProviderGitHubCopilot = "github-copilot"
	ProviderOpenAI        = "openai"
	ProviderOpenRouter    = "openrouter"
	ProviderArk           = "ark"
)

// SupportedProviders lists the values accepted for PROVIDER.
var SupportedProviders = []string{
	ProviderAnthropic,
	ProviderGemini,
	ProviderGitHubCopilot,
	ProviderOpenAI,
	ProviderOpenRouter,
	ProviderArk,
}

// Environment variables read by Load.
const (
	EnvProvider       = "PROVIDER"
	EnvAPIKey         = "API_KEY"
	EnvModelName      = "MODEL_NAME"
	EnvBaseURL        = "BASE_URL"
	EnvDebugServer    = "AGX_DEBUG_SERVER"
	EnvDebugAddr      = "AGX_DEBUG_ADDR"
	EnvSkipHITL       = "AGX_SKIP_HITL"
	EnvLogLevel       = "AGX_LOG_LEVEL"
	EnvProtectedPaths = "AGX_PROTECTED_PATHS"
)

// DefaultDebugAddr is where the debug server listens unless overridden.
const DefaultDebugAddr = "127.0.0.1:4880"

// DefaultProtectedPaths are project paths the model may never create or edit.
var DefaultProtectedPaths = []string{".git/**", ".agx/**"}

// Config holds the runtime configuration of one agx process.
type Config struct {
	ProjectDir string

	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	DebugServer bool
	DebugAddr   string

	// SkipConfirmation approves every tool call without asking.
	SkipConfirmation bool

	LogLevel       string
	ProtectedPaths []string
}

// Load reads configuration for the project rooted at directory.
// A .env file in the directory is loaded first; variables already present in
// the environment take precedence over it.
func Load(directory string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(directory, ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectDir:       directory,
		Provider:         os.Getenv(EnvProvider),
		APIKey:           os.Getenv(EnvAPIKey),
		Model:            os.Getenv(EnvModelName),
		BaseURL:          os.Getenv(EnvBaseURL),
		DebugServer:      os.Getenv(EnvDebugServer) == "1",
		DebugAddr:        getEnvOrDefault(EnvDebugAddr, DefaultDebugAddr),
		SkipConfirmation: os.Getenv(EnvSkipHITL) == "1",
		LogLevel:         getEnvOrDefault(EnvLogLevel, "INFO"),
		ProtectedPaths:   DefaultProtectedPaths,
	}

	if raw := os.Getenv(EnvProtectedPaths); raw != "" {
		cfg.ProtectedPaths = splitList(raw)
	}

	return cfg, nil
}

// Validate checks that the completion backend is fully configured.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{EnvProvider, c.Provider},
		{EnvAPIKey, c.APIKey},
		{EnvModelName, c.Model},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("environment variable %q is not set", r.name)
		}
	}

	for _, p := range SupportedProviders {
		if c.Provider == p {
			return nil
		}
	}
	return fmt.Errorf("invalid provider %q; allowed values: [%s]", c.Provider, strings.Join(SupportedProviders, ", "))
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
