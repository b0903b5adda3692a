package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lazypower/memvault/internal/httpjson"
)

const openAIURL = "https://api.openai.com"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	url    string
	apiKey string
	opts   Options
	client *http.Client
}

// NewOpenAI creates a chat completions client. An empty url means the
// public OpenAI API.
func NewOpenAI(url, apiKey string, opts Options) *OpenAI {
	if url == "" {
		url = openAIURL
	}
	return &OpenAI{
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		opts:   opts,
		client: httpjson.NewClient(providerTimeout),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (*Response, error) {
	req := chatRequest{
		Model:       o.opts.Model,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
		Messages:    []chatMessage{{Role: RoleUser, Content: prompt}},
	}
	var out chatResponse
	if err := httpjson.Post(ctx, o.client, "openai", o.url+"/v1/chat/completions", o.apiKey, req, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return &Response{
		Content:    out.Choices[0].Message.Content,
		Provider:   "openai",
		TokensUsed: out.Usage.TotalTokens,
	}, nil
}
