package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/ollama"
)

var _ memory.Embedder = (*ollama.Embedder)(nil)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req["model"])
		assert.Equal(t, "dark mode", req["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"all-minilm","embeddings":[[0.5,0.5,0.5,0.5]]}`))
	}))
	defer srv.Close()

	e, err := ollama.New(ollama.Config{Host: srv.URL, Dimensions: 4})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "dark mode")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, vec)
	assert.Equal(t, 4, e.Dimensions())
}

func TestEmbedModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"all-minilm\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	e, err := ollama.New(ollama.Config{Host: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, memory.ErrProvider)
	assert.Contains(t, err.Error(), "not found")
}
