//go:build fastembed

// Package fastembed embeds text locally with fastembed-go, which downloads
// and caches quantized ONNX models on first use. Build with -tags fastembed.
package fastembed

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config configures the fastembed embedder.
type Config struct {
	// Model defaults to all-MiniLM-L6-v2.
	Model string

	// CacheDir stores downloaded models. Default: ".fastembed"
	CacheDir string

	MaxLength int
}

type Embedder struct {
	mu   sync.Mutex
	m    *fastembed.FlagEmbedding
	dims int
}

var dimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseEN:     768,
	fastembed.BGEBaseENV15:  768,
}

// New loads the model, downloading it if needed.
func New(cfg Config) (*Embedder, error) {
	model := fastembed.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = fastembed.AllMiniLML6V2
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".fastembed"
	}
	m, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:     model,
		CacheDir:  cfg.CacheDir,
		MaxLength: cfg.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("load fastembed model %s: %w", model, err)
	}
	return &Embedder{m: m, dims: dimensions[model]}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	vec, err := e.m.QueryEmbed(text)
	if err != nil {
		return nil, &memory.ProviderError{Provider: "fastembed", Err: err}
	}
	return vec, nil
}

func (e *Embedder) Dimensions() int { return e.dims }

func (e *Embedder) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}
