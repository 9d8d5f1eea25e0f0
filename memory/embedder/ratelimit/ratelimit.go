// Package ratelimit throttles calls to a remote embedding provider.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/becomeliminal/nim-memory/memory"
)

// Embedder waits on a token bucket before each call to next.
type Embedder struct {
	next    memory.Embedder
	limiter *rate.Limiter
}

// New allows rps requests per second with the given burst. rps <= 0
// disables limiting.
func New(next memory.Embedder, rps float64, burst int) *Embedder {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Embedder{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Embed blocks until a token is available or ctx is done.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.Embed(ctx, text)
}

func (e *Embedder) Dimensions() int { return e.next.Dimensions() }
