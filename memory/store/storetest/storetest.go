// Package storetest holds the conformance suite every store.Backend runs in
// its own tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
)

// Factory returns a fresh, unopened backend. Each call must yield an empty
// backend isolated from the others.
type Factory func(t *testing.T) store.Backend

// Record builds a test record with a 4-dimensional embedding.
func Record(content string, vec ...float32) memory.VectorRecord {
	if len(vec) == 0 {
		vec = []float32{1, 0, 0, 0}
	}
	return memory.VectorRecord{
		Embedding: vec,
		Metadata: memory.Metadata{
			"content":   content,
			"category":  "general",
			"timestamp": float64(1700000000000),
			"pinned":    true,
		},
		InsertedAt: time.Date(2024, 5, 1, 12, 0, 0, 123000000, time.UTC),
	}
}

// Run executes the backend contract against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("OpenIsIdempotent", func(t *testing.T) {
		b := open(t, newBackend)
		require.NoError(t, b.Open(context.Background(), "conformance"))
		n, err := b.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("InsertAndAll", func(t *testing.T) {
		ctx := context.Background()
		b := open(t, newBackend)

		want := Record("hello", 0.5, 0.5, 0.5, 0.5)
		id, err := b.Insert(ctx, want)
		require.NoError(t, err)
		assert.Positive(t, id)

		all, err := b.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)

		got := all[0]
		assert.Equal(t, id, got.ID)
		assert.Equal(t, want.Embedding, got.Embedding)
		assert.Equal(t, want.Metadata, got.Metadata)
		assert.True(t, want.InsertedAt.Equal(got.InsertedAt), "inserted_at %v != %v", got.InsertedAt, want.InsertedAt)
	})

	t.Run("IDsAscend", func(t *testing.T) {
		ctx := context.Background()
		b := open(t, newBackend)

		var last int64
		for i := 0; i < 5; i++ {
			id, err := b.Insert(ctx, Record(fmt.Sprintf("m%d", i)))
			require.NoError(t, err)
			assert.Greater(t, id, last)
			last = id
		}
	})

	t.Run("OldestIDs", func(t *testing.T) {
		ctx := context.Background()
		b := open(t, newBackend)

		ids, err := b.OldestIDs(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, ids)

		var inserted []int64
		for i := 0; i < 5; i++ {
			id, err := b.Insert(ctx, Record(fmt.Sprintf("m%d", i)))
			require.NoError(t, err)
			inserted = append(inserted, id)
		}
		require.NoError(t, b.Delete(ctx, inserted[0]))

		ids, err = b.OldestIDs(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, inserted[1:3], ids)

		ids, err = b.OldestIDs(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, inserted[1:], ids)

		ids, err = b.OldestIDs(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("DeleteAndCount", func(t *testing.T) {
		ctx := context.Background()
		b := open(t, newBackend)

		var ids []int64
		for i := 0; i < 3; i++ {
			id, err := b.Insert(ctx, Record(fmt.Sprintf("m%d", i)))
			require.NoError(t, err)
			ids = append(ids, id)
		}
		require.NoError(t, b.Delete(ctx, ids[0], ids[2]+1000))

		n, err := b.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		all, err := b.All(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, ids[1:], recordIDs(all))
	})

	t.Run("ClearKeepsSequence", func(t *testing.T) {
		ctx := context.Background()
		b := open(t, newBackend)

		first, err := b.Insert(ctx, Record("before"))
		require.NoError(t, err)
		require.NoError(t, b.Clear(ctx))
		require.NoError(t, b.Clear(ctx))

		all, err := b.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		second, err := b.Insert(ctx, Record("after"))
		require.NoError(t, err)
		assert.Greater(t, second, first)
	})

	t.Run("ConcurrentInserts", func(t *testing.T) {
		ctx := context.Background()
		b := open(t, newBackend)

		const n = 16
		var wg sync.WaitGroup
		ids := make([]int64, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = b.Insert(ctx, Record(fmt.Sprintf("c%d", i)))
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		seen := make(map[int64]bool, n)
		for _, id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
		count, err := b.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, n, count)
	})
}

func open(t *testing.T, newBackend Factory) store.Backend {
	t.Helper()
	b := newBackend(t)
	require.NoError(t, b.Open(context.Background(), "conformance"))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func recordIDs(records []memory.VectorRecord) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
