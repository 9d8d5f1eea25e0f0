//go:build onnx

package main

import (
	"context"
	"log/slog"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
)

func init() {
	providers["onnx"] = func(_ context.Context, cfg config.EmbedderConfig, dims int, logger *slog.Logger) (memory.Embedder, error) {
		return onnx.New(onnx.Config{
			ModelPath:     cfg.ModelPath,
			TokenizerPath: cfg.TokenizerPath,
			LibraryPath:   cfg.LibraryPath,
			Dimensions:    dims,
			Logger:        logger,
		})
	}
}
