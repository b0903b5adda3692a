package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic calls the Anthropic Messages API through the official SDK.
type Anthropic struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropic creates a new Anthropic API client. baseURL may be empty.
func NewAnthropic(apiKey, baseURL string, opts Options) *Anthropic {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(reqOpts...),
		opts:   opts,
	}
}

// Complete sends the prompt as a single user message.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.opts.Model),
		MaxTokens: int64(a.opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if a.opts.Temperature > 0 {
		params.Temperature = anthropic.Float(a.opts.Temperature)
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Content:    text.String(),
		Provider:   "anthropic",
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}
