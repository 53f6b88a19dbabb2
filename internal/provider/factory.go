package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dhth/agx/internal/config"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	geminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"

	anthropicMaxTokens = 50000
	defaultMaxTokens   = 8192
)

// New builds the provider selected by cfg, with tools bound.
func New(ctx context.Context, cfg *config.Config, tools []*schema.ToolInfo) (Provider, error) {
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		chatModel, err = newOpenAIModel(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, nil)
	case config.ProviderOpenRouter:
		chatModel, err = newOpenAIModel(ctx, cfg.APIKey, orDefault(cfg.BaseURL, openRouterBaseURL), cfg.Model, nil)
	case config.ProviderGemini:
		chatModel, err = newOpenAIModel(ctx, cfg.APIKey, orDefault(cfg.BaseURL, geminiBaseURL), cfg.Model, nil)
	case config.ProviderGitHubCopilot:
		chatModel, err = newCopilotModel(ctx, cfg.APIKey, cfg.Model, nil)
	case config.ProviderAnthropic:
		chatModel, err = newAnthropicModel(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model)
	case config.ProviderArk:
		chatModel, err = newArkModel(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("invalid provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewEinoProvider(cfg.Provider, cfg.Model, chatModel, tools)
}

func newOpenAIModel(ctx context.Context, apiKey, baseURL, modelID string, transport *headerTransport) (model.ToolCallingChatModel, error) {
	maxTokens := defaultMaxTokens
	cfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if transport != nil {
		cfg.HTTPClient = transport.client()
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}
	return chatModel, nil
}

func newAnthropicModel(ctx context.Context, apiKey, baseURL, modelID string) (model.ToolCallingChatModel, error) {
	cfg := &claude.Config{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: anthropicMaxTokens,
	}
	if baseURL != "" {
		cfg.BaseURL = &baseURL
	}

	chatModel, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude model: %w", err)
	}
	return chatModel, nil
}

func newArkModel(ctx context.Context, apiKey, baseURL, modelID string) (model.ToolCallingChatModel, error) {
	maxTokens := defaultMaxTokens
	cfg := &ark.ChatModelConfig{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: &maxTokens,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ARK model: %w", err)
	}
	return chatModel, nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
