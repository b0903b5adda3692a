// Package embed turns text into fixed-length vectors.
package embed

import (
	"context"
	"fmt"

	"github.com/lazypower/memvault/internal/config"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding space, e.g. "ollama:nomic-embed-text".
	Model() string
	// Dimensions is the length of every vector Embed returns, or 0 when
	// it is not known until the first call.
	Dimensions() int
}

// New builds the embedder described by cfg, wrapped in the configured
// rate limiter and cache.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case "ollama":
		e = NewOllama(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedder requires OPENAI_API_KEY or config")
		}
		e = NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions)
	case "hash":
		e = NewHash(cfg.Dimensions)
	case "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		e = NewRateLimited(e, cfg.RequestsPerSecond, 1)
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCached(e, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		e = cached
	}
	return e, nil
}
