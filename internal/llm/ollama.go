package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/lazypower/memvault/internal/httpjson"
)

// Ollama calls a local Ollama instance.
type Ollama struct {
	url    string
	opts   Options
	client *http.Client
}

// NewOllama creates a new Ollama client.
func NewOllama(url string, opts Options) *Ollama {
	return &Ollama{
		url:    strings.TrimRight(url, "/"),
		opts:   opts,
		client: httpjson.NewClient(providerTimeout),
	}
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Complete sends a non-streaming request to /api/generate.
func (o *Ollama) Complete(ctx context.Context, prompt string) (*Response, error) {
	req := generateRequest{
		Model:  o.opts.Model,
		Prompt: prompt,
		Options: generateOptions{
			Temperature: o.opts.Temperature,
			NumPredict:  o.opts.MaxTokens,
		},
	}
	var out generateResponse
	if err := httpjson.Post(ctx, o.client, "ollama", o.url+"/api/generate", "", req, &out); err != nil {
		return nil, err
	}
	return &Response{
		Content:    out.Response,
		Provider:   "ollama",
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}
