package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cache"
	"github.com/becomeliminal/nim-memory/memory/embedder/gemini"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/embedder/ollama"
	"github.com/becomeliminal/nim-memory/memory/embedder/openai"
	"github.com/becomeliminal/nim-memory/memory/embedder/ratelimit"
)

type providerFunc func(ctx context.Context, cfg config.EmbedderConfig, dims int, logger *slog.Logger) (memory.Embedder, error)

// providers is extended by build-tagged files for the local model runtimes.
var providers = map[string]providerFunc{
	"mock": func(_ context.Context, _ config.EmbedderConfig, dims int, _ *slog.Logger) (memory.Embedder, error) {
		return mock.New(dims), nil
	},
	"openai": func(_ context.Context, cfg config.EmbedderConfig, _ int, _ *slog.Logger) (memory.Embedder, error) {
		return openai.New(openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	},
	"ollama": func(_ context.Context, cfg config.EmbedderConfig, _ int, _ *slog.Logger) (memory.Embedder, error) {
		return ollama.New(ollama.Config{
			Host:       cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	},
	"gemini": func(ctx context.Context, cfg config.EmbedderConfig, _ int, _ *slog.Logger) (memory.Embedder, error) {
		return gemini.New(ctx, gemini.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	},
}

// newEmbedder builds the configured provider wrapped in the rate limiter
// and cache. The returned closers run in order on shutdown.
func newEmbedder(ctx context.Context, cfg config.EmbedderConfig, dims int, logger *slog.Logger) (memory.Embedder, []io.Closer, error) {
	newProvider, ok := providers[cfg.Provider]
	if !ok {
		return nil, nil, fmt.Errorf("unknown embedding provider %q (local runtimes need the onnx or fastembed build tag)", cfg.Provider)
	}
	provider, err := newProvider(ctx, cfg, dims, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s embedder: %w", cfg.Provider, err)
	}

	var closers []io.Closer
	if c, ok := provider.(io.Closer); ok {
		closers = append(closers, c)
	}

	embedder := provider
	if cfg.RateLimit > 0 {
		embedder = ratelimit.New(embedder, cfg.RateLimit, cfg.Burst)
	}
	if cfg.CacheEntries > 0 {
		cached, err := cache.New(embedder, cache.Config{MaxEntries: cfg.CacheEntries})
		if err != nil {
			closeAll(closers, logger)
			return nil, nil, fmt.Errorf("create embedding cache: %w", err)
		}
		embedder = cached
		closers = append([]io.Closer{cached}, closers...)
	}

	logger.Info("embedder ready", "provider", cfg.Provider, "rate_limit", cfg.RateLimit, "cache_entries", cfg.CacheEntries)
	return embedder, closers, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
