//go:build fastembed

package main

import (
	"context"
	"log/slog"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/fastembed"
)

func init() {
	providers["fastembed"] = func(_ context.Context, cfg config.EmbedderConfig, _ int, _ *slog.Logger) (memory.Embedder, error) {
		return fastembed.New(fastembed.Config{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	}
}
