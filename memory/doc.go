// Package memory provides long-term vector memory for agents.
//
// Agents store short texts with Memorize and later retrieve the most similar
// ones with Recall. Each memory is an embedding vector plus scalar metadata
// (content, category, timestamp and any caller fields).
//
// Architecture:
//   - Store: durable vector records (memory/store with pluggable backends:
//     sqlite, chromem-go, redis, postgres, mongodb, in-process)
//   - Search: pure ranking of a store snapshot (Search, Normalize, Dot)
//   - Embedder: text-to-vector conversion (memory/embedder/...)
//   - Manager: orchestrates embed -> store and embed -> search, and turns
//     every failure into a result value
//
// Error kinds (ValidationError, StorageUnavailableError, ProviderError) fail
// fast below the Manager; the Manager reports them in MemorizeResult,
// RecallResult and Result instead of returning them.
//
// Ranking is deterministic: similarity descending, ties by ascending record
// ID, truncated to k and never padded.
package memory
