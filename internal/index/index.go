// Package index implements the in-process brute-force retrieval index and
// the similarity helpers shared by every index variant.
package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/lazypower/memvault/internal/memory"
)

type entry struct {
	id  string
	vec []float32
}

// BruteForce holds every vector in memory and scores all of them on each
// query. Ties are broken by insertion order, earlier first.
type BruteForce struct {
	mu      sync.RWMutex
	dims    int
	entries []entry
	pos     map[string]int
}

var _ memory.Index = (*BruteForce)(nil)

// NewBruteForce returns an empty index for vectors of length dims.
func NewBruteForce(dims int) *BruteForce {
	return &BruteForce{dims: dims, pos: make(map[string]int)}
}

func (b *BruteForce) Dimensions() int { return b.dims }

// Insert adds vec under id. Replacing an existing id keeps its original
// insertion position.
func (b *BruteForce) Insert(_ context.Context, id string, vec []float32) error {
	if err := memory.CheckDimensions(vec, b.dims); err != nil {
		return err
	}
	v := append([]float32(nil), vec...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.pos[id]; ok {
		b.entries[i].vec = v
		return nil
	}
	b.pos[id] = len(b.entries)
	b.entries = append(b.entries, entry{id: id, vec: v})
	return nil
}

func (b *BruteForce) Remove(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.pos[id]
	if !ok {
		return nil
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	delete(b.pos, id)
	for j := i; j < len(b.entries); j++ {
		b.pos[b.entries[j].id] = j
	}
	return nil
}

// Query scores every stored vector against vec by cosine similarity and
// returns the k best.
func (b *BruteForce) Query(_ context.Context, vec []float32, k int) ([]memory.Hit, error) {
	if err := memory.CheckDimensions(vec, b.dims); err != nil {
		return nil, err
	}
	hits := []memory.Hit{}
	if k <= 0 {
		return hits, nil
	}

	b.mu.RLock()
	for _, e := range b.entries {
		hits = append(hits, memory.Hit{ID: e.id, Score: CosineSimilarity(vec, e.vec)})
	}
	b.mu.RUnlock()

	// entries are in insertion order, so a stable sort keeps earlier
	// inserts ahead on equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (b *BruteForce) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.pos = make(map[string]int)
	return nil
}

func (b *BruteForce) Len(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries), nil
}

// Has reports whether id is indexed.
func (b *BruteForce) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.pos[id]
	return ok
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths and zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Normalize performs in-place L2 normalization.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
