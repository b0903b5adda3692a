package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/memvault/internal/memory"
)

const recordColumns = `id, text, embedding, model, metadata, created_at, updated_at`

// Put inserts or replaces the record with r.ID.
func (db *DB) Put(ctx context.Context, r *memory.Record) error {
	meta, err := encodeMetadata(r.Metadata)
	if err != nil {
		return fmt.Errorf("put memory %s: %w", r.ID, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO memories (id, text, embedding, model, dimensions, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			model = excluded.model,
			dimensions = excluded.dimensions,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, r.ID, r.Text, encodeEmbedding(r.Embedding), r.Model, len(r.Embedding), meta,
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put memory %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the record with the given id, or memory.ErrNotFound.
func (db *DB) Get(ctx context.Context, id string) (*memory.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM memories WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get memory %s: %w", id, memory.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", id, err)
	}
	return r, nil
}

// Delete removes the record with the given id. Deleting an absent id
// returns memory.ErrNotFound.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete memory %s: %w", id, memory.ErrNotFound)
	}
	return nil
}

// List returns records ordered by created_at, newest first unless
// opts.Order is memory.OrderOldest.
func (db *DB) List(ctx context.Context, opts memory.ListOptions) ([]*memory.Record, error) {
	order := "DESC"
	if opts.Order == memory.OrderOldest {
		order = "ASC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // no limit
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM memories
		ORDER BY created_at `+order+`, id `+order+`
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	records := []*memory.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Clear removes every record and returns the number removed.
func (db *DB) Clear(ctx context.Context) (int, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM memories")
	if err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}
	return int(n), nil
}

// Count returns the number of stored records.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*memory.Record, error) {
	var (
		r                memory.Record
		blob             []byte
		meta             string
		created, updated int64
	)
	if err := s.Scan(&r.ID, &r.Text, &blob, &r.Model, &meta, &created, &updated); err != nil {
		return nil, err
	}
	r.Embedding = decodeEmbedding(blob)
	r.CreatedAt = time.Unix(0, created).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	if meta != "" && meta != "{}" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func encodeMetadata(m memory.Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}
