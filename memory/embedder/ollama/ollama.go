// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/becomeliminal/nim-memory/memory"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "all-minilm"
)

// Config configures the Ollama embedder.
type Config struct {
	// Host defaults to DefaultHost.
	Host string

	// Model defaults to DefaultModel (all-MiniLM-L6-v2, 384 dimensions).
	Model string

	// Dimensions is reported by Dimensions(); 0 means unknown.
	Dimensions int

	// Timeout bounds each request. Default: 60s
	Timeout time.Duration
}

type Embedder struct {
	client *api.Client
	model  string
	dims   int
}

// New creates an Ollama embedder. It does not contact the server.
func New(cfg Config) (*Embedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &Embedder{
		client: api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, &memory.ProviderError{Provider: "ollama", Err: err}
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, &memory.ProviderError{Provider: "ollama", Err: fmt.Errorf("empty embedding for model %s", e.model)}
	}
	return res.Embeddings[0], nil
}

func (e *Embedder) Dimensions() int { return e.dims }
