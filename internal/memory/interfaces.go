package memory

import "context"

// Store is durable (or explicitly volatile) keyed storage of records.
type Store interface {
	// Put inserts or overwrites the record with r.ID.
	Put(ctx context.Context, r *Record) error
	// Get returns ErrNotFound when id is absent.
	Get(ctx context.Context, id string) (*Record, error)
	// Delete returns ErrNotFound when id is absent, including on a
	// second delete of the same id.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	// Clear removes every record and returns how many were removed.
	Clear(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Index answers nearest-neighbour queries over record embeddings.
// Implementations must reject vectors whose length differs from
// Dimensions() with ErrDimensionMismatch and leave their state unchanged.
type Index interface {
	// Insert adds or replaces the vector stored under id.
	Insert(ctx context.Context, id string, vec []float32) error
	// Remove deletes id. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error
	// Query returns up to k hits ordered by descending score. An empty
	// index yields an empty result.
	Query(ctx context.Context, vec []float32, k int) ([]Hit, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Dimensions() int
}

// TextIndex is implemented by indexes that rank records by their text
// rather than their vector. The engine hands such an index the record text
// on every insert and the raw query on every search; Insert and Query are
// not used.
type TextIndex interface {
	Index
	InsertText(ctx context.Context, id, text string) error
	QueryText(ctx context.Context, query string, k int) ([]Hit, error)
}
