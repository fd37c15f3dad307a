package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and the offline simulation.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]Record)}
}

func (m *Memory) List(ctx context.Context, collection string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col := m.data[collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := normalize(col[id])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return normalize(rec)
}

func (m *Memory) Merge(ctx context.Context, collection, id string, fields Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := normalize(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.collection(collection)
	rec := Patch(col[id], patch)
	rec[IDField] = id
	col[id] = rec
	return nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp, err := normalize(rec)
	if err != nil {
		return err
	}
	cp[IDField] = id
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection(collection)[id] = cp
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) collection(name string) map[string]Record {
	col, ok := m.data[name]
	if !ok {
		col = make(map[string]Record)
		m.data[name] = col
	}
	return col
}
