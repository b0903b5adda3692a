package index

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/lazypower/memvault/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	Normalize(vec)
	norm := math.Sqrt(float64(vec[0]*vec[0] + vec[1]*vec[1]))
	assert.InDelta(t, 1.0, norm, 1e-6)

	zero := []float32{0, 0, 0}
	Normalize(zero) // should not panic
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestBruteForceQueryEmpty(t *testing.T) {
	idx := NewBruteForce(3)
	hits, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestBruteForceQueryRanks(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(2)
	require.NoError(t, idx.Insert(ctx, "far", []float32{0, 1}))
	require.NoError(t, idx.Insert(ctx, "near", []float32{1, 0.1}))
	require.NoError(t, idx.Insert(ctx, "mid", []float32{1, 1}))

	hits, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestBruteForceTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(2)
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, idx.Insert(ctx, id, []float32{1, 1}))
	}

	hits, err := idx.Query(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"first", "second", "third"}, hitIDs(hits))

	// Replacing a vector keeps the id's original position.
	require.NoError(t, idx.Insert(ctx, "first", []float32{2, 2}))
	hits, err = idx.Query(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, hitIDs(hits))
}

func TestBruteForceDimensionMismatchLeavesIndexUnchanged(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(3)
	require.NoError(t, idx.Insert(ctx, "a", []float32{1, 0, 0}))

	err := idx.Insert(ctx, "b", []float32{1, 0})
	require.ErrorIs(t, err, memory.ErrDimensionMismatch)

	err = idx.Insert(ctx, "a", []float32{1, 0, 0, 0})
	require.ErrorIs(t, err, memory.ErrDimensionMismatch)

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, idx.Has("b"))

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	_, err = idx.Query(ctx, []float32{1, 0}, 5)
	require.ErrorIs(t, err, memory.ErrDimensionMismatch)
}

func TestBruteForceRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(2)
	for i := 0; i < 4; i++ {
		require.NoError(t, idx.Insert(ctx, fmt.Sprintf("r%d", i), []float32{1, float32(i)}))
	}

	require.NoError(t, idx.Remove(ctx, "r1"))
	require.NoError(t, idx.Remove(ctx, "r1"), "removing an absent id is not an error")
	assert.False(t, idx.Has("r1"))

	// Positions after the removed entry must still resolve.
	require.NoError(t, idx.Remove(ctx, "r3"))
	assert.True(t, idx.Has("r2"))
	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBruteForceQueryLimits(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(2)
	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Insert(ctx, fmt.Sprintf("r%d", i), []float32{1, float32(i)}))
	}

	hits, err := idx.Query(ctx, []float32{1, 5}, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = idx.Query(ctx, []float32{1, 5}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Query(ctx, []float32{1, 5}, 50)
	require.NoError(t, err)
	assert.Len(t, hits, 10)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestBruteForceClear(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(2)
	require.NoError(t, idx.Insert(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Clear(ctx))

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := idx.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Insert(ctx, "b", []float32{0, 1}))
	assert.True(t, idx.Has("b"))
}

func TestBruteForceInsertCopiesVector(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(2)
	vec := []float32{1, 0}
	require.NoError(t, idx.Insert(ctx, "a", vec))
	vec[0], vec[1] = 0, 1

	hits, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func hitIDs(hits []memory.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}
