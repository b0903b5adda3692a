package embed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazypower/memvault/internal/config"
	"github.com/lazypower/memvault/internal/index"
	"github.com/lazypower/memvault/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"Hello World", 2},
		{"Go developer, prefers minimal dependencies.", 5},
		{"a b c", 0}, // single chars skipped
		{"SQLite WAL mode", 3},
		{"", 0},
	}

	for _, tt := range tests {
		tokens := tokenize(tt.input)
		assert.Len(t, tokens, tt.want, "tokenize(%q) = %v", tt.input, tokens)
	}
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHash(128)
	assert.Equal(t, 128, h.Dimensions())
	assert.Equal(t, "hash", h.Model())

	a, err := h.Embed(ctx, "I prefer Python for backend development")
	require.NoError(t, err)
	require.Len(t, a, 128)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)

	again, err := h.Embed(ctx, "i PREFER python, for backend development!")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, index.CosineSimilarity(a, again), 1e-6, "case and punctuation are ignored")

	empty, err := h.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 128)
	assert.Zero(t, index.CosineSimilarity(a, empty))
}

func TestHashDefaultDimensions(t *testing.T) {
	assert.Equal(t, 384, NewHash(0).Dimensions())
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body["model"])
		assert.Equal(t, "hello", body["input"])
		w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	e := NewOllama(srv.URL+"/", "nomic-embed-text", 3)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "ollama:nomic-embed-text", e.Model())
}

func TestProbeOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body["model"])
		w.Write([]byte(`{"embeddings":[[0.5,0.5]]}`))
	}))
	defer srv.Close()

	assert.True(t, ProbeOllama(context.Background(), srv.URL, "nomic-embed-text"))
}

func TestOllamaEmbedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "missing", 3).Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "status 404")
	assert.False(t, ProbeOllama(context.Background(), srv.URL, "missing"))
}

func TestOllamaRejectsWrongLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m", 3).Embed(context.Background(), "hello")
	require.ErrorIs(t, err, memory.ErrDimensionMismatch)
	var de *memory.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 3, de.Want)
	assert.Equal(t, 2, de.Got)
}

func TestOpenAIRejectsWrongLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[1,0,0]}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "k", "m", 4).Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, memory.ErrDimensionMismatch)
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"embedding":[1,0,0,0]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAI(srv.URL, "sk-test", "text-embedding-3-small", 4)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vec)
	assert.Equal(t, "openai:text-embedding-3-small", e.Model())
}

type countingEmbedder struct {
	calls int
	inner Embedder
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}
func (c *countingEmbedder) Model() string   { return c.inner.Model() }
func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{inner: NewHash(16)}
	c, err := NewCached(inner, 100)
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Embed(ctx, "cache me")
	require.NoError(t, err)
	first[0] = 42 // callers own the returned slice

	second, err := c.Embed(ctx, "cache me")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.NotEqual(t, float32(42), second[0])

	_, err = c.Embed(ctx, "something else")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 16, c.Dimensions())
}

func TestRateLimitedHonoursContext(t *testing.T) {
	r := NewRateLimited(NewHash(8), 0.001, 1)
	ctx := context.Background()
	_, err := r.Embed(ctx, "first call uses the burst")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Embed(cancelled, "second call waits")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	e, err := New(config.EmbedderConfig{Provider: "hash", Dimensions: 32})
	require.NoError(t, err)
	assert.IsType(t, &Hash{}, e)

	e, err = New(config.EmbedderConfig{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768, CacheSize: 10, RequestsPerSecond: 5})
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, e)
	assert.Equal(t, "ollama:nomic-embed-text", e.Model())
	assert.Equal(t, 768, e.Dimensions())

	_, err = New(config.EmbedderConfig{Provider: "openai", Model: "text-embedding-3-small"})
	assert.Error(t, err, "missing api key")

	_, err = New(config.EmbedderConfig{Provider: "word2vec"})
	assert.Error(t, err)
}
