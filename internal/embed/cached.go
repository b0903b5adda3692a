package embed

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached memoizes another embedder's output in a ristretto cache keyed by
// model and text. Repeated queries skip the provider round trip.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCached wraps inner with a cache holding up to size vectors.
func NewCached(inner Embedder, size int) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Model() string   { return c.inner.Model() }
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.inner.Model() + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		return append([]float32(nil), v.([]float32)...), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]float32(nil), vec...), 1)
	c.cache.Wait()
	return vec, nil
}

// Close releases the cache's background goroutines.
func (c *Cached) Close() {
	c.cache.Close()
}
