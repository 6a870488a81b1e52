// Package provider selects the language model backend used for question
// answering: a local OpenAI-compatible server when enabled, OpenRouter
// otherwise.
package provider

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/FINQ/ai/openrouter"
	"github.com/teranos/FINQ/am"
	"github.com/teranos/FINQ/errors"
)

// Provider represents an LLM provider type
type Provider string

const (
	// ProviderLocal uses local inference (Ollama, LocalAI)
	ProviderLocal Provider = "local"
	// ProviderOpenRouter uses OpenRouter.ai API
	ProviderOpenRouter Provider = "openrouter"
	// ProviderAuto automatically selects based on configuration
	ProviderAuto Provider = "auto"
)

// AIClient is the single capability the question engine needs from a model
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// ClientConfig holds common configuration for creating AI clients
type ClientConfig struct {
	DB            *sql.DB // Usage tracking (nil = untracked)
	Logger        *zap.SugaredLogger
	OperationType string
}

// NewAIClient creates an AI client based on configuration.
// Priority: LocalInference (if enabled) → OpenRouter
func NewAIClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return NewAIClientWithProvider(cfg, ProviderAuto, clientCfg)
}

// NewAIClientWithProvider creates an AI client for a specific provider.
// Use ProviderAuto to let the factory decide based on configuration.
func NewAIClientWithProvider(cfg *am.Config, provider Provider, clientCfg ClientConfig) AIClient {
	switch provider {
	case ProviderLocal:
		return newLocalClient(cfg, clientCfg)
	case ProviderOpenRouter:
		return newOpenRouterClient(cfg, clientCfg)
	default:
		if cfg.LocalInference.Enabled && cfg.LocalInference.BaseURL != "" {
			return newLocalClient(cfg, clientCfg)
		}
		return newOpenRouterClient(cfg, clientCfg)
	}
}

func newLocalClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return NewLocalProvider(cfg.LocalInference, clientCfg)
}

func newOpenRouterClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return openrouter.NewClient(openrouter.Config{
		APIKey:        cfg.OpenRouter.APIKey,
		Model:         cfg.OpenRouter.Model,
		Temperature:   cfg.OpenRouter.Temperature,
		MaxTokens:     cfg.OpenRouter.MaxTokens,
		Logger:        clientCfg.Logger,
		DB:            clientCfg.DB,
		OperationType: clientCfg.OperationType,
	})
}

// GetAvailableProviders returns the providers usable with cfg
func GetAvailableProviders(cfg *am.Config) []Provider {
	var providers []Provider

	if cfg.LocalInference.Enabled {
		providers = append(providers, ProviderLocal)
	}
	if cfg.OpenRouter.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}

	return providers
}

// ParseProvider converts a string to a Provider type
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "auto", "":
		return ProviderAuto, nil
	default:
		return "", errors.WithHint(
			errors.NewInvalidRequestError("unknown provider: %s", s),
			"valid providers: local, openrouter, auto")
	}
}
