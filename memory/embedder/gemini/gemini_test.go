package gemini_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/gemini"
)

var _ memory.Embedder = (*gemini.Embedder)(nil)

func TestNewRequiresKey(t *testing.T) {
	_, err := gemini.New(context.Background(), gemini.Config{})
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	e, err := gemini.New(context.Background(), gemini.Config{APIKey: "test-key", Dimensions: 768})
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, 768, e.Dimensions())
}
