package provider

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/provider/anthropic"
	openai_provider "github.com/mohammad-safakhou/quizsolver/provider/openai"
	"github.com/mohammad-safakhou/quizsolver/provider/prompt"
)

// Client names an LLM backend
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Prompt is one single-turn completion request.
type Prompt = prompt.Prompt

// TextCompletionProvider is the interface that all LLM implementations must satisfy
type TextCompletionProvider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// NewProvider creates an LLM client from configuration. "auto" is resolved by
// LLMConfig.Normalize before the switch.
func NewProvider(cfg config.LLMConfig) (TextCompletionProvider, error) {
	cfg = cfg.Normalize()
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai api key not set")
		}
		return openai_provider.NewOpenAIClient(cfg.OpenAIKey, cfg.Model, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens), nil
	case Anthropic:
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic api key not set")
		}
		return anthropic.NewClient(cfg.AnthropicKey, cfg.Model, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
