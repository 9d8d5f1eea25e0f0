package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cache"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/store"
	"github.com/becomeliminal/nim-memory/memory/store/inmem"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewBackend(t *testing.T) {
	for _, name := range []string{"inmem", "sqlite", "chromem", "redis", "postgres", "mongo"} {
		b, err := newBackend(config.StoreConfig{Backend: name, URL: "unused"}, discard)
		require.NoError(t, err, name)
		assert.NotNil(t, b, name)
	}
	_, err := newBackend(config.StoreConfig{Backend: "cassandra"}, discard)
	assert.Error(t, err)
}

type refusingBackend struct {
	inmem.Backend
	closed bool
}

func (b *refusingBackend) Open(context.Context, string) error {
	return errors.New("connection refused")
}

func (b *refusingBackend) Close() error {
	b.closed = true
	return nil
}

func TestOpenStoreClosesBackendOnFailure(t *testing.T) {
	b := &refusingBackend{}
	s, err := openStore(context.Background(), b, config.StoreConfig{Backend: "redis", Dimensionality: 4}, discard)
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrStorageUnavailable)
	assert.Nil(t, s)
	assert.True(t, b.closed, "backend closed after failed open")
}

func TestNewEmbedderChain(t *testing.T) {
	ctx := context.Background()
	e, closers, err := newEmbedder(ctx, config.EmbedderConfig{
		Provider:     "mock",
		CacheEntries: 100,
		RateLimit:    1000,
		Burst:        10,
	}, 16, discard)
	require.NoError(t, err)
	defer closeAll(closers, discard)

	_, ok := e.(*cache.Embedder)
	assert.True(t, ok, "cache wraps the chain")
	assert.Equal(t, 16, e.Dimensions())

	vec, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, _, err := newEmbedder(context.Background(), config.EmbedderConfig{Provider: "word2vec"}, 16, discard)
	assert.Error(t, err)
}

func TestExportImportFile(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{Backend: "inmem", Name: "test", Dimensionality: 4, MaxVectors: 10, CapacityPolicy: "evict_oldest"}

	open := func() *store.Store {
		b, err := newBackend(cfg, discard)
		require.NoError(t, err)
		s, err := store.Open(ctx, b, storeConfig(cfg, discard))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	src := open()
	_, err := src.Insert(ctx, []float32{1, 0, 0, 0}, memory.Metadata{"content": "a"})
	require.NoError(t, err)
	_, err = src.Insert(ctx, []float32{0, 1, 0, 0}, memory.Metadata{"content": "b"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "memories.jsonl.zst")
	require.NoError(t, exportFile(ctx, src, path, discard))

	dst := open()
	require.NoError(t, importFile(ctx, dst, path, discard))

	n, err := dst.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunChat(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",`+
			`"content":[{"type":"text","text":"Hello there."}],"stop_reason":"end_turn","stop_sequence":null,`+
			`"usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	s, err := store.Open(ctx, inmem.New(), store.Config{Dimensionality: 8})
	require.NoError(t, err)
	defer s.Close()
	manager, err := memory.NewManager(s, mock.New(8), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	err = runChat(ctx, config.AgentConfig{APIKey: "test"}, manager, strings.NewReader("hi\n\nbye\n"), &out, discard,
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, "> Hello there.\n> > Hello there.\n> ", out.String())
}

func TestRunChatNeedsKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	err := runChat(context.Background(), config.AgentConfig{}, nil, strings.NewReader(""), io.Discard, discard)
	assert.Error(t, err)
}
