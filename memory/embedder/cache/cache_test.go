package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cache"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dimensions() int { return 2 }

func TestCachesEmbeddings(t *testing.T) {
	next := &countingEmbedder{}
	e, err := cache.New(next, cache.Config{MaxEntries: 100})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	first, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	e.Wait()

	second, err := e.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 2, e.Dimensions())

	// Mutating a returned vector does not corrupt the cache
	second[0] = 99
	third, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), third[0])
}

func TestErrorsAreNotCached(t *testing.T) {
	next := &countingEmbedder{err: errors.New("offline")}
	e, err := cache.New(next, cache.Config{})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	_, err = e.Embed(ctx, "x")
	require.Error(t, err)
	e.Wait()

	next.err = nil
	vec, err := e.Embed(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vec)
	assert.Equal(t, 2, next.calls)
}

var _ memory.Embedder = (*cache.Embedder)(nil)
