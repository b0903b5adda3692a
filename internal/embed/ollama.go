package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lazypower/memvault/internal/httpjson"
	"github.com/lazypower/memvault/internal/memory"
)

const embedTimeout = 30 * time.Second

// Ollama uses Ollama's embedding API.
type Ollama struct {
	url    string
	model  string
	dims   int
	client *http.Client
}

// NewOllama creates an embedder using Ollama's API.
func NewOllama(url, model string, dims int) *Ollama {
	return &Ollama{
		url:    strings.TrimRight(url, "/"),
		model:  model,
		dims:   dims,
		client: httpjson.NewClient(embedTimeout),
	}
}

func (o *Ollama) Model() string   { return "ollama:" + o.model }
func (o *Ollama) Dimensions() int { return o.dims }

type ollamaRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends text to Ollama's embed endpoint and returns the embedding vector.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	var out ollamaResponse
	if err := httpjson.Post(ctx, o.client, "ollama embed", o.url+"/api/embed", "", ollamaRequest{Model: o.model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}
	return checkLength(out.Embeddings[0], o.dims)
}

// ProbeOllama checks if Ollama is reachable and the embedding model is available.
func ProbeOllama(ctx context.Context, url, model string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	e := NewOllama(url, model, 0)
	_, err := e.Embed(ctx, "test")
	return err == nil
}

// checkLength rejects provider output that does not match the configured
// dimensionality with a *memory.DimensionError. want == 0 accepts any
// length.
func checkLength(vec []float32, want int) ([]float32, error) {
	if want > 0 {
		if err := memory.CheckDimensions(vec, want); err != nil {
			return nil, err
		}
	}
	return vec, nil
}
