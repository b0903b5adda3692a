package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lazypower/memvault/internal/memory"
)

// Stats summarizes the engine state.
type Stats struct {
	Records    int    `json:"records"`
	Indexed    int    `json:"indexed"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is empty", memory.ErrInvalidRecord)
	}
	return nil
}

// Add embeds text and stores it as a new record. It returns the new id.
func (e *Engine) Add(ctx context.Context, text string, meta memory.Metadata) (id string, err error) {
	ctx, done := e.begin(ctx, "add")
	defer done(&err)

	if err := checkText(text); err != nil {
		return "", err
	}
	meta, err = meta.Normalize()
	if err != nil {
		return "", err
	}
	vec, err := e.embed(ctx, text)
	if err != nil {
		return "", err
	}

	now := e.now().UTC()
	rec := &memory.Record{
		ID:        uuid.NewString(),
		Text:      text,
		Embedding: vec,
		Model:     e.embedder.Model(),
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.putIndexed(ctx, rec, nil); err != nil {
		return "", err
	}
	e.refreshGauge(ctx)
	e.logger.DebugContext(ctx, "memory added", "id", rec.ID)
	return rec.ID, nil
}

// Get returns the record with id, or ErrNotFound.
func (e *Engine) Get(ctx context.Context, id string) (rec *memory.Record, err error) {
	ctx, done := e.begin(ctx, "get")
	defer done(&err)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(ctx, id)
}

// List returns records ordered by creation time.
func (e *Engine) List(ctx context.Context, opts memory.ListOptions) (recs []*memory.Record, err error) {
	ctx, done := e.begin(ctx, "list")
	defer done(&err)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.List(ctx, opts)
}

// Count returns the number of stored records.
func (e *Engine) Count(ctx context.Context) (n int, err error) {
	ctx, done := e.begin(ctx, "count")
	defer done(&err)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Count(ctx)
}

// Stats reports record and index sizes.
func (e *Engine) Stats(ctx context.Context) (st Stats, err error) {
	ctx, done := e.begin(ctx, "stats")
	defer done(&err)

	e.mu.RLock()
	defer e.mu.RUnlock()
	st = Stats{Dimensions: e.index.Dimensions(), Model: e.embedder.Model()}
	if st.Records, err = e.store.Count(ctx); err != nil {
		return st, fmt.Errorf("count records: %w", err)
	}
	if st.Indexed, err = e.index.Len(ctx); err != nil {
		return st, fmt.Errorf("count index: %w", err)
	}
	return st, nil
}

// Update replaces the text of id and re-embeds it. A nil meta keeps the
// existing metadata. The id and creation time are preserved.
func (e *Engine) Update(ctx context.Context, id, text string, meta memory.Metadata) (rec *memory.Record, err error) {
	ctx, done := e.begin(ctx, "update")
	defer done(&err)

	if err := checkText(text); err != nil {
		return nil, err
	}
	if meta != nil {
		if meta, err = meta.Normalize(); err != nil {
			return nil, err
		}
		if meta == nil {
			meta = memory.Metadata{}
		}
	}
	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	old, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec = old.Clone()
	rec.Text = text
	rec.Embedding = vec
	rec.Model = e.embedder.Model()
	if meta != nil {
		rec.Metadata = meta
	}
	rec.UpdatedAt = e.now().UTC()
	if err := e.putIndexed(ctx, rec, old); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// UpdateMetadata replaces the metadata of id without re-embedding.
func (e *Engine) UpdateMetadata(ctx context.Context, id string, meta memory.Metadata) (rec *memory.Record, err error) {
	ctx, done := e.begin(ctx, "update_metadata")
	defer done(&err)

	if meta, err = meta.Normalize(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	old, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec = old.Clone()
	rec.Metadata = meta
	rec.UpdatedAt = e.now().UTC()
	if err := e.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store put %s: %w", id, err)
	}
	return rec.Clone(), nil
}

// Delete removes id from the index and the store. Deleting an unknown id
// returns ErrNotFound and changes nothing.
func (e *Engine) Delete(ctx context.Context, id string) (err error) {
	ctx, done := e.begin(ctx, "delete")
	defer done(&err)

	e.mu.Lock()
	defer e.mu.Unlock()

	old, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("index remove %s: %w", id, err)
	}
	delErr := e.store.Delete(ctx, id)
	if delErr == nil {
		e.refreshGauge(ctx)
		return nil
	}

	if _, byText := e.index.(memory.TextIndex); !byText && old.Embedding == nil {
		return fmt.Errorf("store delete %s: %w", id, delErr)
	}
	if reErr := e.indexInsert(ctx, old); reErr != nil {
		e.logger.ErrorContext(ctx, "store delete failed and index restore failed",
			"id", id, "delete_error", delErr, "restore_error", reErr)
		return fmt.Errorf("%w: %s: %w", memory.ErrPartialDelete, id, errors.Join(delErr, reErr))
	}
	return fmt.Errorf("store delete %s: %w", id, delErr)
}

// Clear empties the store and the index. It returns the number of records
// the store removed. A failure in either container yields ErrPartialClear.
func (e *Engine) Clear(ctx context.Context) (n int, err error) {
	ctx, done := e.begin(ctx, "clear")
	defer done(&err)

	e.mu.Lock()
	defer e.mu.Unlock()

	n, storeErr := e.store.Clear(ctx)
	indexErr := e.index.Clear(ctx)
	e.refreshGauge(ctx)
	if storeErr != nil || indexErr != nil {
		e.logger.ErrorContext(ctx, "clear left store and index diverged",
			"store_error", storeErr, "index_error", indexErr)
		return n, fmt.Errorf("%w: %w", memory.ErrPartialClear, errors.Join(storeErr, indexErr))
	}
	e.logger.InfoContext(ctx, "memories cleared", "count", n)
	return n, nil
}
