package memory

import (
	"context"
	"time"
)

// Metadata keys written by the Manager on every memorized record.
const (
	KeyContent   = "content"
	KeyCategory  = "category"
	KeyTimestamp = "timestamp"
)

// DefaultCategory is used when Memorize is called without WithCategory.
const DefaultCategory = "general"

// Metadata is the scalar key/value bag attached to a VectorRecord.
// Values are strings, bools, float64 numbers or nil; see CanonicalValue.
type Metadata map[string]any

// Clone returns a shallow copy. Values are scalars so a shallow copy is a full copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value under key if it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Int64 returns the numeric value under key truncated to int64.
func (m Metadata) Int64(key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Filter maps a metadata field to the exact scalar value a record must carry.
type Filter map[string]any

// VectorRecord is a single persisted embedding with its metadata.
//
// Records are created only by a store's Insert and never mutated afterwards.
type VectorRecord struct {
	// ID is assigned by the backend, unique and ascending with insertion order.
	ID int64 `json:"id"`

	// Embedding has unit L2 norm unless it is the all-zero vector.
	Embedding []float32 `json:"embedding"`

	Metadata Metadata `json:"metadata"`

	// InsertedAt is the store-assigned creation time. It is distinct from
	// the caller supplied metadata timestamp.
	InsertedAt time.Time `json:"inserted_at"`
}

// Clone returns a deep copy so snapshots never alias backend state.
func (r VectorRecord) Clone() VectorRecord {
	r.Embedding = append([]float32(nil), r.Embedding...)
	r.Metadata = r.Metadata.Clone()
	return r
}

// MemoryEntry is the view of a recalled record handed back to agents.
type MemoryEntry struct {
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
	Timestamp  int64   `json:"timestamp"`
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx and fastembed (local models),
// openai, ollama and gemini (remote APIs).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size, or 0 when unknown
	// until the first call.
	Dimensions() int
}

// RecordStore is the part of the vector record store the Manager needs.
// *store.Store implements it.
type RecordStore interface {
	Insert(ctx context.Context, embedding []float32, metadata Metadata) (int64, error)
	FetchAll(ctx context.Context) ([]VectorRecord, error)
	Clear(ctx context.Context) error
	Dimensionality() int
}
