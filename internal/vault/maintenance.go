package vault

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/store"
)

// embedConcurrency bounds provider calls during Reindex and Load.
const embedConcurrency = 4

// ReindexOptions controls Reindex. Reembed forces every record through the
// embedding provider even when its stored vector is current.
type ReindexOptions struct {
	Reembed bool
}

// current reports whether rec's vector belongs to the active embedding space.
func (e *Engine) current(rec *memory.Record) bool {
	return rec.Model == e.embedder.Model() && len(rec.Embedding) == e.index.Dimensions()
}

// embedAll re-embeds recs in place, at most embedConcurrency at a time.
func (e *Engine) embedAll(ctx context.Context, recs []*memory.Record) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for _, rec := range recs {
		g.Go(func() error {
			vec, err := e.embed(gctx, rec.Text)
			if err != nil {
				return fmt.Errorf("embed %s: %w", rec.ID, err)
			}
			rec.Embedding = vec
			rec.Model = e.embedder.Model()
			return nil
		})
	}
	return g.Wait()
}

// Reindex rebuilds the index from the store. Records whose vectors are
// stale, or every record when opts.Reembed is set, are embedded again
// first. It returns the number of index entries written.
func (e *Engine) Reindex(ctx context.Context, opts ReindexOptions) (n int, err error) {
	ctx, done := e.begin(ctx, "reindex")
	defer done(&err)

	e.mu.RLock()
	snapshot, err := e.store.List(ctx, memory.ListOptions{Order: memory.OrderOldest})
	e.mu.RUnlock()
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	var todo []*memory.Record
	for _, rec := range snapshot {
		if opts.Reembed || !e.current(rec) {
			todo = append(todo, rec)
		}
	}
	if err := e.embedAll(ctx, todo); err != nil {
		return 0, err
	}
	fresh := make(map[string]*memory.Record, len(todo))
	for _, rec := range todo {
		fresh[rec.ID] = rec
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-read under the write lock so records changed since the snapshot
	// are indexed as they are now.
	records, err := e.store.List(ctx, memory.ListOptions{Order: memory.OrderOldest})
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	if err := e.index.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}
	// From here on the index is missing entries until the loop completes.
	diverged := func(err error) error {
		err = fmt.Errorf("%w: reindex stopped after %d of %d records: %w", memory.ErrIndexingFailed, n, len(records), err)
		e.logger.ErrorContext(ctx, "reindex left the index incomplete", "indexed", n, "records", len(records), "error", err)
		return err
	}
	for _, rec := range records {
		if f, ok := fresh[rec.ID]; ok && f.Text == rec.Text {
			rec.Embedding = f.Embedding
			rec.Model = f.Model
			if err := e.store.Put(ctx, rec); err != nil {
				return n, diverged(fmt.Errorf("store put %s: %w", rec.ID, err))
			}
		}
		if !e.current(rec) {
			e.logger.WarnContext(ctx, "record changed during reindex and was not embedded", "id", rec.ID)
			continue
		}
		if err := e.indexInsert(ctx, rec); err != nil {
			return n, diverged(fmt.Errorf("index insert %s: %w", rec.ID, err))
		}
		n++
	}
	e.logger.InfoContext(ctx, "reindex complete", "indexed", n, "reembedded", len(todo))
	return n, nil
}

// Dump writes every record, with its embedding, to w.
func (e *Engine) Dump(ctx context.Context, w io.Writer) (err error) {
	ctx, done := e.begin(ctx, "dump")
	defer done(&err)

	e.mu.RLock()
	d, err := store.Export(ctx, e.store, store.DumpHeader{
		Model:      e.embedder.Model(),
		Dimensions: e.index.Dimensions(),
		ExportedAt: e.now().UTC(),
	})
	e.mu.RUnlock()
	if err != nil {
		return err
	}
	return store.WriteDump(w, d)
}

// Load imports a dump. Vectors from the active embedding space are reused
// and the rest are embedded again. Records with an existing id overwrite
// it. It returns the number of records loaded.
func (e *Engine) Load(ctx context.Context, r io.Reader) (n int, err error) {
	ctx, done := e.begin(ctx, "load")
	defer done(&err)

	d, err := store.ReadDump(r)
	if err != nil {
		return 0, err
	}

	now := e.now().UTC()
	var todo []*memory.Record
	for _, rec := range d.Records {
		if err := checkText(rec.Text); err != nil {
			return 0, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if rec.Metadata, err = rec.Metadata.Normalize(); err != nil {
			return 0, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if rec.Model == "" {
			rec.Model = d.Model
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = rec.CreatedAt
		}
		if !e.current(rec) {
			todo = append(todo, rec)
		}
	}
	if err := e.embedAll(ctx, todo); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.refreshGauge(ctx)
	for _, rec := range d.Records {
		prev, err := e.store.Get(ctx, rec.ID)
		if err != nil && !errors.Is(err, memory.ErrNotFound) {
			return n, err
		}
		if err := e.putIndexed(ctx, rec, prev); err != nil {
			return n, err
		}
		n++
	}
	e.logger.InfoContext(ctx, "dump loaded", "records", n, "reembedded", len(todo))
	return n, nil
}
