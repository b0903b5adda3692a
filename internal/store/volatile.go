package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lazypower/memvault/internal/memory"
)

// Memory is an in-process record store. It is volatile: everything it holds
// is lost when the process exits. Use it for tests and throwaway sessions.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*memory.Record
}

var _ memory.Store = (*Memory)(nil)

// NewMemory returns an empty volatile store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*memory.Record)}
}

func (m *Memory) Put(_ context.Context, r *memory.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*memory.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("get memory %s: %w", id, memory.ErrNotFound)
	}
	return r.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("delete memory %s: %w", id, memory.ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) List(_ context.Context, opts memory.ListOptions) ([]*memory.Record, error) {
	m.mu.RLock()
	records := make([]*memory.Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r.Clone())
	}
	m.mu.RUnlock()

	sortRecords(records, opts.Order)
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return records, nil
}

func (m *Memory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	m.records = make(map[string]*memory.Record)
	return n, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Close() error { return nil }

// sortRecords orders by created_at then id, matching the SQLite ordering.
func sortRecords(records []*memory.Record, order memory.Order) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == memory.OrderOldest {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if order == memory.OrderOldest {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}
