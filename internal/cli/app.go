package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lazypower/memvault/internal/config"
	"github.com/lazypower/memvault/internal/embed"
	"github.com/lazypower/memvault/internal/index"
	"github.com/lazypower/memvault/internal/index/chromem"
	"github.com/lazypower/memvault/internal/index/keyword"
	"github.com/lazypower/memvault/internal/index/qdrant"
	"github.com/lazypower/memvault/internal/llm"
	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/store"
	"github.com/lazypower/memvault/internal/telemetry"
	"github.com/lazypower/memvault/internal/vault"
)

// app holds everything a command needs, built once from config.
type app struct {
	cfg     config.Config
	engine  *vault.Engine
	metrics *telemetry.Metrics
	storeAt string
	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracing(os.Stderr, "memvault", Version)
		if err != nil {
			return nil, err
		}
		a.onClose(func() error { return shutdown(context.Background()) })
	}
	if cfg.Telemetry.Metrics {
		a.metrics = telemetry.NewMetrics()
	}

	st, err := a.openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.onClose(st.Close)

	idx, persistent, err := a.openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	emb, err := embed.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if c, ok := emb.(*embed.Cached); ok {
		a.onClose(func() error { c.Close(); return nil })
	}

	chat, err := llm.NewClient(cfg.LLM)
	if err != nil {
		slog.Warn("chat provider not configured, chat disabled", "error", err)
		chat = nil
	}

	a.engine, err = vault.New(vault.Config{
		DefaultTopK:     cfg.Chat.DefaultTopK,
		MaxContextChars: cfg.Chat.MaxContextChars,
		SystemPrompt:    cfg.Chat.SystemPrompt,
	}, st, idx, emb, chat, vault.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}

	if cfg.Embedder.CheckOnStart && cfg.Embedder.Provider != "hash" && cfg.Embedder.Provider != "none" {
		if err := a.checkEmbedder(ctx); err != nil {
			return nil, err
		}
	}

	// The index is rebuilt from the store whenever either side does not
	// outlive the process, so a fresh volatile store also drops vectors a
	// persistent index kept from an earlier run.
	if !persistent || cfg.Store.Backend == "memory" {
		if _, err := a.engine.Reindex(ctx, vault.ReindexOptions{}); err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
	}
	return a, nil
}

// checkEmbedder fails startup when the provider's vectors cannot fit the
// index. An unreachable provider only warns, so commands that never embed
// still work.
func (a *app) checkEmbedder(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := a.engine.CheckEmbedder(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, memory.ErrDimensionMismatch):
		return fmt.Errorf("embedder %s does not match embedder.dimensions: %w", a.engine.Model(), err)
	default:
		slog.Warn("embedding provider unreachable at startup", "model", a.engine.Model(), "error", err)
		return nil
	}
}

func (a *app) openStore(cfg config.StoreConfig) (memory.Store, error) {
	switch cfg.Backend {
	case "memory":
		a.storeAt = "memory (volatile)"
		return store.NewMemory(), nil
	case "badger":
		dir := cfg.Path
		if dir == "" {
			base, err := store.DefaultDataDir()
			if err != nil {
				return nil, fmt.Errorf("resolve data dir: %w", err)
			}
			dir = filepath.Join(base, "badger")
		}
		a.storeAt = dir
		b, err := store.OpenBadger(dir)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return b, nil
	default:
		path := cfg.Path
		if path == "" {
			var err error
			if path, err = store.DefaultDBPath(); err != nil {
				return nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		a.storeAt = path
		db, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}
}

// openIndex builds the configured index and reports whether it outlives
// the process.
func (a *app) openIndex(ctx context.Context, cfg config.Config) (memory.Index, bool, error) {
	dims := cfg.Embedder.Dimensions
	switch cfg.Index.Backend {
	case "qdrant":
		q, err := qdrant.Dial(ctx, qdrant.Config{
			Addr:       cfg.Index.Qdrant.Addr,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Dimensions: dims,
		})
		if err != nil {
			return nil, false, err
		}
		a.onClose(q.Close)
		return q, true, nil
	case "chromem":
		c, err := chromem.Open(chromem.Config{
			Path:       cfg.Index.Chromem.Path,
			Compress:   cfg.Index.Chromem.Compress,
			Dimensions: dims,
		})
		if err != nil {
			return nil, false, err
		}
		return c, cfg.Index.Chromem.Path != "", nil
	case "keyword":
		return keyword.New(), false, nil
	default:
		return index.NewBruteForce(dims), false, nil
	}
}
