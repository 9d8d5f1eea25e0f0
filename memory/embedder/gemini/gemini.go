// Package gemini embeds text with the Google Gemini embedding API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/becomeliminal/nim-memory/memory"
)

const DefaultModel = "text-embedding-004"

type Config struct {
	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// Dimensions is reported by Dimensions(); text-embedding-004 returns 768.
	Dimensions int
}

type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
	dims   int
}

// New creates a Gemini embedder.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Embedder{
		client: client,
		model:  client.EmbeddingModel(cfg.Model),
		name:   cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &memory.ProviderError{Provider: "gemini", Err: err}
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, &memory.ProviderError{Provider: "gemini", Err: fmt.Errorf("empty embedding for model %s", e.name)}
	}
	return resp.Embedding.Values, nil
}

func (e *Embedder) Dimensions() int { return e.dims }

func (e *Embedder) Close() error {
	return e.client.Close()
}
