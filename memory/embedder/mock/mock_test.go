package mock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
)

var _ memory.Embedder = (*mock.Embedder)(nil)

func TestEmbedDeterministic(t *testing.T) {
	e := mock.New(16)
	ctx := context.Background()

	a, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "goodbye")
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1.0, memory.Magnitude(a), 1e-5)
}

func TestDefaultDimensions(t *testing.T) {
	assert.Equal(t, mock.DefaultDimensions, mock.New(0).Dimensions())
}

func TestEmbedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mock.New(8).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
