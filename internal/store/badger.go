package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/lazypower/memvault/internal/memory"
)

var recordPrefix = []byte("rec/")

func recordKey(id string) []byte {
	return append(append([]byte(nil), recordPrefix...), id...)
}

// Badger is a durable record store backed by an embedded Badger KV
// database. Each record is stored as JSON under "rec/<id>".
type Badger struct {
	db   *badger.DB
	Path string
}

var _ memory.Store = (*Badger)(nil)

// OpenBadger opens (or creates) a Badger database in dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db, Path: dir}, nil
}

// OpenBadgerMemory opens a volatile in-memory Badger database for testing.
func OpenBadgerMemory() (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger memory: %w", err)
	}
	return &Badger{db: db, Path: ":memory:"}, nil
}

func (b *Badger) Put(_ context.Context, r *memory.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("put memory %s: %w", r.ID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r.ID), data)
	})
	if err != nil {
		return fmt.Errorf("put memory %s: %w", r.ID, err)
	}
	return nil
}

func (b *Badger) Get(_ context.Context, id string) (*memory.Record, error) {
	var r memory.Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("get memory %s: %w", id, memory.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", id, err)
	}
	return &r, nil
}

func (b *Badger) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(id)); err != nil {
			return err
		}
		return txn.Delete(recordKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete memory %s: %w", id, memory.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	return nil
}

func (b *Badger) List(_ context.Context, opts memory.ListOptions) ([]*memory.Record, error) {
	records := []*memory.Record{}
	err := b.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = recordPrefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var r memory.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, &r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	sortRecords(records, opts.Order)
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return records, nil
}

func (b *Badger) Clear(ctx context.Context) (int, error) {
	n, err := b.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}
	if err := b.db.DropPrefix(recordPrefix); err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}
	return n, nil
}

func (b *Badger) Count(_ context.Context) (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = recordPrefix
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
