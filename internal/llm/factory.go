package llm

import (
	"fmt"
	"log"
	"time"

	"morvo/internal/config"
)

// NewProvider creates an LLM provider from config.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "openrouter", "local":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case "intent":
		return NewIntentProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// Build creates the provider chain used by the companion: the primary
// provider, an optional fallback, each wrapped with the retry policy from
// its own config. Remote providers without an API key degrade to the
// intent templates.
func Build(primary config.LLMConfig, fallback *config.LLMConfig) (Provider, error) {
	p, err := buildOne(primary)
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		return p, nil
	}
	f, err := buildOne(*fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return NewFallbackProvider(p, f), nil
}

func buildOne(cfg config.LLMConfig) (Provider, error) {
	if cfg.Provider != "intent" && cfg.Provider != "local" && cfg.APIKey == "" {
		log.Printf("[llm] no API key for %s, answering from intent templates", cfg.Provider)
		return NewIntentProvider(), nil
	}
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Provider == "intent" {
		return p, nil
	}

	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	if cfg.TimeoutSecs > 0 {
		policy.AttemptTimeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return NewRetryProvider(p, policy), nil
}
