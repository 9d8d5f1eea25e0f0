package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
	redisstore "github.com/becomeliminal/nim-memory/memory/store/redis"
	"github.com/becomeliminal/nim-memory/memory/store/storetest"
)

var _ store.Backend = (*redisstore.Backend)(nil)

func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr
}

func TestBackendConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		mr := setupMiniRedis(t)
		return redisstore.New(redisstore.Config{Address: mr.Addr()})
	})
}

func TestKeyLayout(t *testing.T) {
	ctx := context.Background()
	mr := setupMiniRedis(t)

	b := redisstore.New(redisstore.Config{Address: mr.Addr(), Prefix: "test"})
	require.NoError(t, b.Open(ctx, "agent"))
	defer b.Close()

	_, err := b.Insert(ctx, storetest.Record("hello"))
	require.NoError(t, err)

	seq, err := mr.Get("test:agent:seq")
	require.NoError(t, err)
	assert.Equal(t, "1", seq)
	assert.True(t, mr.Exists("test:agent:records"))
	assert.Contains(t, mr.HGet("test:agent:records", "1"), `"content":"hello"`)
}

func TestSharedAcrossStores(t *testing.T) {
	ctx := context.Background()
	mr := setupMiniRedis(t)

	writer, err := store.Open(ctx, redisstore.New(redisstore.Config{Address: mr.Addr()}), store.Config{Dimensionality: 4})
	require.NoError(t, err)
	defer writer.Close()
	reader, err := store.Open(ctx, redisstore.New(redisstore.Config{Address: mr.Addr()}), store.Config{Dimensionality: 4})
	require.NoError(t, err)
	defer reader.Close()

	_, err = writer.Insert(ctx, []float32{1, 0, 0, 0}, memory.Metadata{"content": "shared"})
	require.NoError(t, err)

	records, err := reader.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "shared", records[0].Metadata["content"])
}

func TestOpenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = store.Open(context.Background(), redisstore.New(redisstore.Config{Address: addr}), store.Config{Dimensionality: 4})
	assert.ErrorIs(t, err, memory.ErrStorageUnavailable)
}
