package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lazypower/memvault/internal/httpjson"
)

const openAIURL = "https://api.openai.com"

// OpenAI calls an OpenAI-compatible /v1/embeddings endpoint.
type OpenAI struct {
	url    string
	apiKey string
	model  string
	dims   int
	client *http.Client
}

// NewOpenAI creates an OpenAI embeddings client. An empty url means the
// public OpenAI API.
func NewOpenAI(url, apiKey, model string, dims int) *OpenAI {
	if url == "" {
		url = openAIURL
	}
	return &OpenAI{
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		model:  model,
		dims:   dims,
		client: httpjson.NewClient(embedTimeout),
	}
}

func (o *OpenAI) Model() string   { return "openai:" + o.model }
func (o *OpenAI) Dimensions() int { return o.dims }

type openAIRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	var out openAIResponse
	if err := httpjson.Post(ctx, o.client, "openai embed", o.url+"/v1/embeddings", o.apiKey, openAIRequest{Model: o.model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embeddings")
	}
	return checkLength(out.Data[0].Embedding, o.dims)
}
