package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "GeminiNanoVectors", cfg.Store.Name)
	assert.Equal(t, 384, cfg.Store.Dimensionality)
	assert.Equal(t, 5000, cfg.Store.MaxVectors)
	assert.Equal(t, "evict_oldest", cfg.Store.CapacityPolicy)
	assert.Equal(t, "mock", cfg.Embedder.Provider)
	assert.Equal(t, int64(10000), cfg.Embedder.CacheEntries)
	assert.Equal(t, 60*time.Second, cfg.Embedder.Timeout)
	assert.Equal(t, 3, cfg.Recall.K)
	assert.InDelta(t, 0.7, cfg.Recall.Threshold, 1e-9)
	assert.Equal(t, "127.0.0.1:7077", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memoryd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: redis
  dimensionality: 768
  redis:
    address: redis:6379
embedder:
  provider: gemini
recall:
  threshold: 0.35
`), 0o600))

	t.Setenv("NIM_MEMORY_STORE_MAX_VECTORS", "-1")
	t.Setenv("NIM_MEMORY_SERVER_ADDR", ":9000")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 768, cfg.Store.Dimensionality)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Address)
	assert.Equal(t, "gemini", cfg.Embedder.Provider)
	assert.InDelta(t, 0.35, cfg.Recall.Threshold, 1e-9)
	assert.Equal(t, -1, cfg.Store.MaxVectors)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"NIM_MEMORY_STORE_BACKEND": "cassandra"}},
		{"postgres without url", map[string]string{"NIM_MEMORY_STORE_BACKEND": "postgres"}},
		{"zero dimensionality", map[string]string{"NIM_MEMORY_STORE_DIMENSIONALITY": "0"}},
		{"zero k", map[string]string{"NIM_MEMORY_RECALL_K": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoggerFormat(t *testing.T) {
	assert.NotNil(t, config.LogConfig{Level: "debug", Format: "json"}.Logger())
	assert.NotNil(t, config.LogConfig{Level: "bogus"}.Logger())
}
