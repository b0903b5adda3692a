// Package chromem is an embedded retrieval index backed by chromem-go,
// optionally persisted to disk.
package chromem

import (
	"context"
	"fmt"
	"sync"

	"github.com/lazypower/memvault/internal/index"
	"github.com/lazypower/memvault/internal/memory"
	"github.com/philippgille/chromem-go"
)

const defaultCollection = "memories"

// Config selects persistence. An empty Path keeps everything in memory.
type Config struct {
	Path       string
	Compress   bool
	Collection string
	Dimensions int
}

// Index is a memory.Index over a single chromem collection. Vectors are
// supplied by the caller; chromem never embeds anything itself.
type Index struct {
	mu   sync.RWMutex
	db   *chromem.DB
	col  *chromem.Collection
	name string
	dims int
}

var _ memory.Index = (*Index)(nil)

// Open creates or opens the collection described by cfg.
func Open(cfg Config) (*Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem %s: %w", cfg.Path, err)
		}
	}

	name := cfg.Collection
	if name == "" {
		name = defaultCollection
	}
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem collection %s: %w", name, err)
	}
	return &Index{db: db, col: col, name: name, dims: cfg.Dimensions}, nil
}

func (c *Index) Dimensions() int { return c.dims }

func (c *Index) Insert(ctx context.Context, id string, vec []float32) error {
	if err := memory.CheckDimensions(vec, c.dims); err != nil {
		return err
	}
	v := append([]float32(nil), vec...)
	index.Normalize(v)

	c.mu.RLock()
	defer c.mu.RUnlock()
	// AddDocument overwrites an existing id.
	if err := c.col.AddDocument(ctx, chromem.Document{ID: id, Content: id, Embedding: v}); err != nil {
		return fmt.Errorf("chromem insert %s: %w", id, err)
	}
	return nil
}

func (c *Index) Remove(ctx context.Context, id string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem remove %s: %w", id, err)
	}
	return nil
}

// Query caps k at the collection size, since chromem rejects larger
// result counts.
func (c *Index) Query(ctx context.Context, vec []float32, k int) ([]memory.Hit, error) {
	if err := memory.CheckDimensions(vec, c.dims); err != nil {
		return nil, err
	}
	hits := []memory.Hit{}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if n := c.col.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return hits, nil
	}

	q := append([]float32(nil), vec...)
	index.Normalize(q)
	results, err := c.col.QueryEmbedding(ctx, q, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	for _, r := range results {
		hits = append(hits, memory.Hit{ID: r.ID, Score: float64(r.Similarity)})
	}
	return hits, nil
}

// Clear drops and recreates the collection.
func (c *Index) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.DeleteCollection(c.name); err != nil {
		return fmt.Errorf("chromem clear: %w", err)
	}
	col, err := c.db.GetOrCreateCollection(c.name, nil, nil)
	if err != nil {
		return fmt.Errorf("chromem clear: %w", err)
	}
	c.col = col
	return nil
}

func (c *Index) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col.Count(), nil
}
