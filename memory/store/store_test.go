package store_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
	"github.com/becomeliminal/nim-memory/memory/store/inmem"
)

func openStore(t *testing.T, cfg store.Config) *store.Store {
	t.Helper()
	if cfg.Dimensionality == 0 {
		cfg.Dimensionality = 4
	}
	s, err := store.Open(context.Background(), inmem.New(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenDefaults(t *testing.T) {
	s, err := store.Open(context.Background(), inmem.New(), store.Config{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "GeminiNanoVectors", s.Name())
	assert.Equal(t, 384, s.Dimensionality())
	assert.Equal(t, 5000, s.MaxVectors())
}

func TestOpenRejectsUnknownPolicy(t *testing.T) {
	_, err := store.Open(context.Background(), inmem.New(), store.Config{CapacityPolicy: "lru"})
	assert.ErrorIs(t, err, memory.ErrValidation)
}

type unreachableBackend struct{ inmem.Backend }

func (*unreachableBackend) Open(context.Context, string) error {
	return errors.New("connection refused")
}

func TestOpenUnavailableBackend(t *testing.T) {
	_, err := store.Open(context.Background(), &unreachableBackend{}, store.Config{Dimensionality: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrStorageUnavailable)

	var sue *memory.StorageUnavailableError
	require.ErrorAs(t, err, &sue)
	assert.Equal(t, "open", sue.Op)
}

func TestInsertNormalizes(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{})

	_, err := s.Insert(ctx, []float32{3, 4, 0, 0}, nil)
	require.NoError(t, err)
	_, err = s.Insert(ctx, []float32{0, 0, 0, 0}, nil)
	require.NoError(t, err)

	records, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		if rec.Embedding[0] == 0 && rec.Embedding[1] == 0 {
			assert.Equal(t, []float32{0, 0, 0, 0}, rec.Embedding)
			continue
		}
		assert.InDelta(t, 1.0, memory.Magnitude(rec.Embedding), 1e-6)
		assert.InDelta(t, 0.6, rec.Embedding[0], 1e-6)
		assert.InDelta(t, 0.8, rec.Embedding[1], 1e-6)
	}
}

func TestInsertFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{})

	meta := memory.Metadata{"content": "x", "category": "work", "priority": 2}
	id, err := s.Insert(ctx, []float32{0, 2, 0, 0}, meta)
	require.NoError(t, err)

	records, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, []float32{0, 1, 0, 0}, rec.Embedding)
	assert.Equal(t, memory.Metadata{"content": "x", "category": "work", "priority": float64(2)}, rec.Metadata)
	assert.False(t, rec.InsertedAt.IsZero())
}

func TestInsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{})

	_, err := s.Insert(ctx, []float32{1, 0, 0, 0}, nil)
	require.NoError(t, err)

	_, err = s.Insert(ctx, []float32{1, 0, 0}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrValidation)

	var ve *memory.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 4, ve.Expected)
	assert.Equal(t, 3, ve.Actual)

	records, err := s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInsertRejectsBadValues(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{})

	_, err := s.Insert(ctx, []float32{float32(math.NaN()), 0, 0, 0}, nil)
	assert.ErrorIs(t, err, memory.ErrValidation)

	_, err = s.Insert(ctx, []float32{1, 0, 0, 0}, memory.Metadata{"tags": []string{"a"}})
	assert.ErrorIs(t, err, memory.ErrValidation)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func seedAB(t *testing.T, s *store.Store) (a, b int64) {
	t.Helper()
	ctx := context.Background()
	a, err := s.Insert(ctx, []float32{1, 0, 0, 0}, memory.Metadata{"content": "A", "category": "work"})
	require.NoError(t, err)
	b, err = s.Insert(ctx, []float32{0, 1, 0, 0}, memory.Metadata{"content": "B", "category": "personal"})
	require.NoError(t, err)
	return a, b
}

func TestSearchRankingDeterminism(t *testing.T) {
	s := openStore(t, store.Config{})
	a, b := seedAB(t, s)

	for i := 0; i < 3; i++ {
		results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, memory.SearchOptions{K: 2, Threshold: 0})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, a, results[0].Record.ID)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
		assert.Equal(t, b, results[1].Record.ID)
		assert.InDelta(t, 0.0, results[1].Similarity, 1e-9)
	}
}

func TestSearchThresholdExclusion(t *testing.T) {
	s := openStore(t, store.Config{})
	seedAB(t, s)

	results, err := s.Search(context.Background(), []float32{0.8, 0.6, 0, 0}, memory.SearchOptions{K: 2, Threshold: 0.9})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchMetadataFilter(t *testing.T) {
	s := openStore(t, store.Config{})
	_, b := seedAB(t, s)

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, memory.SearchOptions{
		K:      2,
		Filter: memory.Filter{"category": "personal"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, b, results[0].Record.ID)
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	s := openStore(t, store.Config{})
	_, err := s.Search(context.Background(), []float32{1, 0}, memory.SearchOptions{K: 1})
	assert.ErrorIs(t, err, memory.ErrValidation)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{})
	_, b := seedAB(t, s)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	records, err := s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	results, err := s.Search(ctx, []float32{0, 0, 1, 0}, memory.SearchOptions{K: 5, Threshold: -1})
	require.NoError(t, err)
	assert.Empty(t, results)

	id, err := s.Insert(ctx, []float32{1, 0, 0, 0}, nil)
	require.NoError(t, err)
	assert.Greater(t, id, b)
}

func TestCapacityEvictOldest(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{MaxVectors: 2, CapacityPolicy: store.EvictOldest})

	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := s.Insert(ctx, []float32{1, float32(i), 0, 0}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	records, err := s.FetchAll(ctx)
	require.NoError(t, err)
	got := make([]int64, 0, len(records))
	for _, r := range records {
		got = append(got, r.ID)
	}
	assert.ElementsMatch(t, ids[2:], got)
}

// countingBackend records how often the full snapshot is read.
type countingBackend struct {
	inmem.Backend
	allCalls atomic.Int32
}

func (b *countingBackend) All(ctx context.Context) ([]memory.VectorRecord, error) {
	b.allCalls.Add(1)
	return b.Backend.All(ctx)
}

func TestCapacityEvictionSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	b := &countingBackend{}
	s, err := store.Open(ctx, b, store.Config{Dimensionality: 4, MaxVectors: 3})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 10; i++ {
		_, err := s.Insert(ctx, []float32{1, float32(i), 0, 0}, nil)
		require.NoError(t, err)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, b.allCalls.Load())
}

func TestCapacityReject(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{MaxVectors: 1, CapacityPolicy: store.RejectNew})

	_, err := s.Insert(ctx, []float32{1, 0, 0, 0}, nil)
	require.NoError(t, err)

	_, err = s.Insert(ctx, []float32{0, 1, 0, 0}, nil)
	assert.ErrorIs(t, err, memory.ErrCapacityExceeded)
	assert.ErrorIs(t, err, memory.ErrValidation)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUnlimitedCapacity(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{MaxVectors: store.Unlimited})
	for i := 0; i < 10; i++ {
		_, err := s.Insert(ctx, []float32{1, 0, 0, 0}, nil)
		require.NoError(t, err)
	}
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Insert(ctx, []float32{1, 0, 0, 0}, nil)
	assert.ErrorIs(t, err, memory.ErrStorageUnavailable)
	_, err = s.FetchAll(ctx)
	assert.ErrorIs(t, err, memory.ErrStorageUnavailable)
	assert.ErrorIs(t, s.Clear(ctx), memory.ErrStorageUnavailable)
}

func TestConcurrentInsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, store.Config{MaxVectors: store.Unlimited})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, []float32{1, 1, 0, 0}, memory.Metadata{"content": "c"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.Search(ctx, []float32{1, 0, 0, 0}, memory.SearchOptions{K: 3})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}
