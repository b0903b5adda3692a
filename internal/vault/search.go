package vault

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lazypower/memvault/internal/memory"
)

// SearchOptions bounds a search. TopK <= 0 means the configured default.
// A nil MinScore disables score filtering.
type SearchOptions struct {
	TopK     int
	MinScore *float64
}

// Search returns up to TopK records most similar to query, best first.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) (results []memory.SearchResult, err error) {
	ctx, done := e.begin(ctx, "search")
	defer done(&err)

	if err := checkText(query); err != nil {
		return nil, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}
	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	hits, err := e.indexQuery(ctx, query, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("index query: %w", err)
	}

	results = make([]memory.SearchResult, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		if _, dup := seen[hit.ID]; dup {
			continue
		}
		seen[hit.ID] = struct{}{}
		if opts.MinScore != nil && hit.Score < *opts.MinScore {
			continue
		}
		rec, err := e.store.Get(ctx, hit.ID)
		if errors.Is(err, memory.ErrNotFound) {
			e.logger.WarnContext(ctx, "index entry has no stored record, skipping", "id", hit.ID)
			e.metrics.StaleEntry()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate %s: %w", hit.ID, err)
		}
		results = append(results, memory.SearchResult{Record: rec, Score: hit.Score})
		if len(results) == topK {
			break
		}
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("top_k", topK),
		attribute.Int("results", len(results)),
	)
	return results, nil
}
