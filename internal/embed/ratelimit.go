package embed

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited blocks until the limiter admits each call. It never retries.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
func NewRateLimited(inner Embedder, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Model() string   { return r.inner.Model() }
func (r *RateLimited) Dimensions() int { return r.inner.Dimensions() }

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate limit: %w", err)
	}
	return r.inner.Embed(ctx, text)
}
