// Package cache memoizes embeddings in a ristretto cache so repeated texts
// skip the provider.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config sizes the cache.
type Config struct {
	// MaxEntries approximates the number of cached embeddings.
	// Default: 10000
	MaxEntries int64
}

// Embedder wraps another embedder with a cost-bounded cache.
type Embedder struct {
	next  memory.Embedder
	cache *ristretto.Cache
}

// New wraps next.
func New(next memory.Embedder, cfg Config) (*Embedder, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
		// Cost counts entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{next: next, cache: c}, nil
}

// Embed returns a copy of the cached vector when present.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return append([]float32(nil), v.([]float32)...), nil
	}
	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, append([]float32(nil), vec...), 1)
	return vec, nil
}

func (e *Embedder) Dimensions() int { return e.next.Dimensions() }

// Wait blocks until buffered writes are applied.
func (e *Embedder) Wait() { e.cache.Wait() }

func (e *Embedder) Close() error {
	e.cache.Close()
	return nil
}
