// Package vault coordinates the record store, the retrieval index and the
// embedding and chat providers. Every mutation keeps the store and the
// index in step or reports exactly how they diverged.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/lazypower/memvault/internal/embed"
	"github.com/lazypower/memvault/internal/llm"
	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/telemetry"
)

const (
	DefaultTopK            = 5
	DefaultMaxContextChars = 4000
)

var tracer = otel.Tracer("github.com/lazypower/memvault/internal/vault")

// Config is the immutable engine configuration. Non-positive values fall
// back to the defaults.
type Config struct {
	DefaultTopK     int
	MaxContextChars int
	SystemPrompt    string
}

func (c Config) withDefaults() Config {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = DefaultTopK
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = DefaultMaxContextChars
	}
	return c
}

// Engine is the memory engine. It is safe for concurrent use.
type Engine struct {
	cfg      Config
	store    memory.Store
	index    memory.Index
	embedder embed.Embedder
	chat     llm.Client

	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	// mu serializes mutations against each other and against readers.
	// Provider calls are never made while it is held.
	mu sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records operation metrics into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. chat may be nil, in which case Chat fails with
// ErrProvider. An embedder that reports a known dimensionality must agree
// with the index.
func New(cfg Config, store memory.Store, index memory.Index, embedder embed.Embedder, chat llm.Client, opts ...Option) (*Engine, error) {
	if store == nil || index == nil || embedder == nil {
		return nil, fmt.Errorf("vault: store, index and embedder are required")
	}
	if d := embedder.Dimensions(); d != 0 && d != index.Dimensions() {
		return nil, fmt.Errorf("vault: embedder %s: %w", embedder.Model(),
			&memory.DimensionError{Want: index.Dimensions(), Got: d})
	}
	e := &Engine{
		cfg:      cfg.withDefaults(),
		store:    store,
		index:    index,
		embedder: embedder,
		chat:     chat,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Model returns the name of the embedding model in use.
func (e *Engine) Model() string { return e.embedder.Model() }

// Dimensions returns the vector dimensionality D.
func (e *Engine) Dimensions() int { return e.index.Dimensions() }

// ChatEnabled reports whether a chat provider is configured.
func (e *Engine) ChatEnabled() bool { return e.chat != nil }

// begin opens a span for op and returns a func that closes it and records
// the outcome. Call it as defer done(&err).
func (e *Engine) begin(ctx context.Context, op string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "vault."+op)
	return ctx, func(errp *error) {
		if err := *errp; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.metrics.Observe(op, start, *errp)
	}
}

// embed calls the provider and checks the result against the index.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %w", memory.ErrProvider, err)
	}
	if err := memory.CheckDimensions(vec, e.index.Dimensions()); err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.embedder.Model(), err)
	}
	return vec, nil
}

// indexInsert adds rec to the index, by text for a memory.TextIndex and by
// vector otherwise.
func (e *Engine) indexInsert(ctx context.Context, rec *memory.Record) error {
	if ti, ok := e.index.(memory.TextIndex); ok {
		return ti.InsertText(ctx, rec.ID, rec.Text)
	}
	return e.index.Insert(ctx, rec.ID, rec.Embedding)
}

func (e *Engine) indexQuery(ctx context.Context, query string, vec []float32, k int) ([]memory.Hit, error) {
	if ti, ok := e.index.(memory.TextIndex); ok {
		return ti.QueryText(ctx, query, k)
	}
	return e.index.Query(ctx, vec, k)
}

// CheckEmbedder embeds a short sample text and verifies the provider's
// vectors fit the index. Errors carry the same sentinels as embed.
func (e *Engine) CheckEmbedder(ctx context.Context) error {
	_, err := e.embed(ctx, "memvault startup check")
	return err
}

// putIndexed writes rec to the store and then to the index. If indexing
// fails the store write is undone: prev is restored, or rec is deleted when
// prev is nil. Callers hold e.mu.
func (e *Engine) putIndexed(ctx context.Context, rec, prev *memory.Record) error {
	if err := e.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("store put %s: %w", rec.ID, err)
	}
	insErr := e.indexInsert(ctx, rec)
	if insErr == nil {
		return nil
	}

	var rbErr error
	if prev == nil {
		rbErr = e.store.Delete(ctx, rec.ID)
	} else {
		rbErr = e.store.Put(ctx, prev)
	}
	if rbErr != nil {
		e.logger.ErrorContext(ctx, "index insert failed and store rollback failed",
			"id", rec.ID, "insert_error", insErr, "rollback_error", rbErr)
		return fmt.Errorf("%w: %s: %w", memory.ErrIndexingFailed, rec.ID, errors.Join(insErr, rbErr))
	}
	return fmt.Errorf("index insert %s: %w", rec.ID, insErr)
}

// refreshGauge updates the records gauge. Callers hold e.mu.
func (e *Engine) refreshGauge(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	if n, err := e.store.Count(ctx); err == nil {
		e.metrics.SetRecords(n)
	}
}
