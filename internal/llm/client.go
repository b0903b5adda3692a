package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/memvault/internal/config"
)

// Client is the interface for chat completion providers. Generation
// options are fixed when the client is built.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// providerTimeout bounds a single completion call.
const providerTimeout = 120 * time.Second

// Options are the generation settings shared by every provider.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func optionsFrom(cfg config.LLMConfig, defaultModel string) Options {
	o := Options{Model: cfg.Model, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	return o
}

// NewClient creates an LLM client based on the config provider setting.
// Provider "none" yields a nil client: chat is disabled.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "mock":
		return &MockClient{Response: &Response{Content: "ok", Provider: "mock"}}, nil
	case "claude-cli":
		return NewClaudeCLI(optionsFrom(cfg, "haiku")), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, optionsFrom(cfg, "claude-haiku-4-5-20251001")), nil
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or a base_url")
		}
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, optionsFrom(cfg, "gpt-4o-mini")), nil
	case "ollama":
		url := cfg.BaseURL
		if url == "" {
			url = "http://localhost:11434"
		}
		return NewOllama(url, optionsFrom(cfg, "llama3.2")), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
