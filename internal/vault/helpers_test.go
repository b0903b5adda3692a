package vault

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/lazypower/memvault/internal/index"
	"github.com/lazypower/memvault/internal/llm"
	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/store"
)

const testDims = 4

// conceptEmbedder maps keywords onto fixed axes so similarity is predictable.
type conceptEmbedder struct {
	model string
	dims  int
	calls atomic.Int64
	err   error
}

var conceptAxes = []struct {
	axis     int
	prefixes []string
}{
	{0, []string{"python", "programming", "backend", "prefer", "language", "code"}},
	{1, []string{"deadline", "march", "project", "due"}},
	{2, []string{"coffee", "tea", "drink", "morning"}},
}

func newConceptEmbedder() *conceptEmbedder {
	return &conceptEmbedder{model: "concept", dims: testDims}
}

func (c *conceptEmbedder) Model() string   { return c.model }
func (c *conceptEmbedder) Dimensions() int { return c.dims }

func (c *conceptEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	vec := make([]float32, c.dims)
	vec[len(vec)-1] = 0.1
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		for _, a := range conceptAxes {
			for _, p := range a.prefixes {
				if strings.HasPrefix(w, p) && a.axis < len(vec) {
					vec[a.axis]++
				}
			}
		}
	}
	return vec, nil
}

// faultyStore wraps a Store with optional failure hooks.
type faultyStore struct {
	memory.Store
	onPut    func(*memory.Record) error
	onDelete func(string) error
	onClear  func() error
}

func (f *faultyStore) Put(ctx context.Context, r *memory.Record) error {
	if f.onPut != nil {
		if err := f.onPut(r); err != nil {
			return err
		}
	}
	return f.Store.Put(ctx, r)
}

func (f *faultyStore) Delete(ctx context.Context, id string) error {
	if f.onDelete != nil {
		if err := f.onDelete(id); err != nil {
			return err
		}
	}
	return f.Store.Delete(ctx, id)
}

func (f *faultyStore) Clear(ctx context.Context) (int, error) {
	if f.onClear != nil {
		if err := f.onClear(); err != nil {
			return 0, err
		}
	}
	return f.Store.Clear(ctx)
}

// faultyIndex wraps a BruteForce index with optional failure hooks.
type faultyIndex struct {
	*index.BruteForce
	onInsert func(string) error
	onRemove func(string) error
	onClear  func() error
}

func (f *faultyIndex) Insert(ctx context.Context, id string, vec []float32) error {
	if f.onInsert != nil {
		if err := f.onInsert(id); err != nil {
			return err
		}
	}
	return f.BruteForce.Insert(ctx, id, vec)
}

func (f *faultyIndex) Remove(ctx context.Context, id string) error {
	if f.onRemove != nil {
		if err := f.onRemove(id); err != nil {
			return err
		}
	}
	return f.BruteForce.Remove(ctx, id)
}

func (f *faultyIndex) Clear(ctx context.Context) error {
	if f.onClear != nil {
		if err := f.onClear(); err != nil {
			return err
		}
	}
	return f.BruteForce.Clear(ctx)
}

var errDisk = errors.New("disk on fire")

// tickClock returns a clock that advances one second per call.
func tickClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	engine   *Engine
	store    *faultyStore
	index    *faultyIndex
	embedder *conceptEmbedder
	chat     *llm.MockClient
	logs     *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    &faultyStore{Store: store.NewMemory()},
		index:    &faultyIndex{BruteForce: index.NewBruteForce(testDims)},
		embedder: newConceptEmbedder(),
		chat:     &llm.MockClient{Response: &llm.Response{Content: "answer", Provider: "mock"}},
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]Option{WithLogger(logger), WithClock(tickClock())}, opts...)
	e, err := New(Config{}, f.store, f.index, f.embedder, f.chat, opts...)
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f *fixture) add(t *testing.T, text string) string {
	t.Helper()
	id, err := f.engine.Add(context.Background(), text, nil)
	require.NoError(t, err)
	return id
}
