// Package openai embeds text with the OpenAI embeddings API or any
// compatible server.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "text-embedding-3-small"

// Config configures the OpenAI embedder.
type Config struct {
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for a local compatible server.
	BaseURL string

	// Model defaults to DefaultModel.
	Model string

	// Dimensions asks the API to shorten vectors. 0 keeps the model size
	// and reports Dimensions() as unknown.
	Dimensions int
}

// Embedder calls the embeddings endpoint once per text.
type Embedder struct {
	client *openai.Client
	model  string
	dims   int
}

// New creates an OpenAI embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{text},
		Dimensions: e.dims,
	})
	if err != nil {
		return nil, &memory.ProviderError{Provider: "openai", Err: err}
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &memory.ProviderError{Provider: "openai", Err: fmt.Errorf("empty embedding for model %s", e.model)}
	}
	return resp.Data[0].Embedding, nil
}

func (e *Embedder) Dimensions() int { return e.dims }
