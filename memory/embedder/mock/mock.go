// Package mock provides a deterministic embedder for tests and offline demos.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// Embedder hashes text into a pseudo-random unit vector. Equal texts always
// embed identically; different texts are close to orthogonal, so it only
// supports exact-match recall.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder. dims <= 0 selects DefaultDimensions.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dimensions: dims}
}

// Embed seeds an LCG with the FNV-1a hash of text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		// [-1, 1]
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return memory.Normalize(embedding), nil
}

func (m *Embedder) Dimensions() int {
	return m.dimensions
}
