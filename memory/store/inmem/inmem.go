// Package inmem is a process-local store.Backend for tests and ephemeral
// agents. Nothing survives the process.
package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/becomeliminal/nim-memory/memory"
)

// Backend keeps records in a map guarded by an RWMutex.
type Backend struct {
	mu      sync.RWMutex
	name    string
	nextID  int64
	records map[int64]memory.VectorRecord
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{records: make(map[int64]memory.VectorRecord)}
}

func (b *Backend) Open(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
	if b.records == nil {
		b.records = make(map[int64]memory.VectorRecord)
	}
	return nil
}

func (b *Backend) Insert(_ context.Context, rec memory.VectorRecord) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	rec = rec.Clone()
	rec.ID = b.nextID
	b.records[rec.ID] = rec
	return rec.ID, nil
}

// All returns deep copies so callers cannot mutate stored records.
func (b *Backend) All(_ context.Context) ([]memory.VectorRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]memory.VectorRecord, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (b *Backend) OldestIDs(_ context.Context, n int) ([]int64, error) {
	b.mu.RLock()
	ids := make([]int64, 0, len(b.records))
	for id := range b.records {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if n < len(ids) {
		ids = ids[:max(n, 0)]
	}
	return ids, nil
}

func (b *Backend) Delete(_ context.Context, ids ...int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.records, id)
	}
	return nil
}

func (b *Backend) Count(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records), nil
}

func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = make(map[int64]memory.VectorRecord)
	return nil
}

func (b *Backend) Close() error { return nil }
