//go:build onnx

// Package onnx embeds text locally with a sentence-transformer model run by
// ONNX Runtime. Build with -tags onnx and point LibraryPath at
// libonnxruntime.
package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default search path.
	LibraryPath string

	// Dimensions is the embedding vector size.
	// Default: 384 (all-MiniLM-L6-v2)
	Dimensions int

	// MaxLength is the token sequence length fed to the model.
	// Default: 128
	MaxLength int

	Logger *slog.Logger
}

// Embedder generates mean-pooled, normalized sentence embeddings.
type Embedder struct {
	mu        sync.Mutex // sessions are not safe for concurrent Run
	session   *ort.DynamicAdvancedSession
	tokenizer *Tokenizer
	dims      int
	maxLen    int
	logger    *slog.Logger
}

var envOnce sync.Once
var envErr error

// New loads the tokenizer and model.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 128
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	envOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", envErr)
	}

	tokenizer, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load BERT tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger := cfg.Logger.With("component", "onnx")
	logger.Info("loaded embedding model", "model", cfg.ModelPath, "dimensions", cfg.Dimensions)

	return &Embedder{
		session:   session,
		tokenizer: tokenizer,
		dims:      cfg.Dimensions,
		maxLen:    cfg.MaxLength,
		logger:    logger,
	}, nil
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputIDs, attentionMask := e.tokenizer.Encode(text, e.maxLen)
	tokenTypeIDs := make([]int64, e.maxLen)

	shape := ort.NewShape(1, int64(e.maxLen))
	var inputs []ort.Value
	for _, data := range [][]int64{inputIDs, attentionMask, tokenTypeIDs} {
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		defer tensor.Destroy()
		inputs = append(inputs, tensor)
	}

	// Auto-allocated by Run
	outputs := []ort.Value{nil}
	e.mu.Lock()
	err := e.session.Run(inputs, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, &memory.ProviderError{Provider: "onnx", Err: err}
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	embedding, err := pool(tensor.GetData(), tensor.GetShape(), attentionMask, e.dims)
	if err != nil {
		return nil, err
	}
	return memory.Normalize(embedding), nil
}

// pool extracts a [1, dims] output directly, or mean-pools a
// [1, seq, dims] output over attended tokens.
func pool(data []float32, shape ort.Shape, mask []int64, dims int) ([]float32, error) {
	embedding := make([]float32, dims)
	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), dims)
		}
		copy(embedding, data[:dims])
		return embedding, nil
	case 3:
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		if shape[2] != int64(dims) {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", shape[2], dims)
		}
		var attended float32
		for i := 0; i < int(shape[1]); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*dims : (i+1)*dims]
			for j, v := range row {
				embedding[j] += v
			}
		}
		for j := range embedding {
			embedding[j] /= attended
		}
		return embedding, nil
	}
	return nil, fmt.Errorf("unexpected output shape: %v", shape)
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases ONNX resources.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
