package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Manager is the memory component agents talk to. It turns memorize and
// recall requests into embedding, store and search calls.
//
// Manager is the recovery boundary of the package: store, search and
// provider errors are logged, counted and reported inside the returned
// result. No method returns a Go error.
type Manager struct {
	store    RecordStore
	embedder Embedder // Internal: agents never see this
	config   *Config
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// Config holds Manager defaults.
type Config struct {
	// DefaultK is the number of memories Recall returns when WithK is not given.
	// Default: 3
	DefaultK int

	// DefaultThreshold is the minimum similarity for Recall when
	// WithThreshold is not given.
	// Default: 0.7
	// Note: small local models (all-MiniLM-L6-v2) score related text lower
	// (~0.35), so lower this for them.
	DefaultThreshold float64

	// DefaultCategory tags memories stored without WithCategory.
	// Default: "general"
	DefaultCategory string
}

// DefaultConfig returns the defaults used when NewManager gets a nil config.
var DefaultConfig = &Config{
	DefaultK:         3,
	DefaultThreshold: 0.7,
	DefaultCategory:  DefaultCategory,
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records operation metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithClock replaces time.Now for memory timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager over an injected store and embedder.
// The caller keeps ownership of the store and closes it.
func NewManager(store RecordStore, embedder Embedder, config *Config, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("memory: store is required")
	}
	if embedder == nil {
		return nil, errors.New("memory: embedder is required")
	}
	if config == nil {
		config = DefaultConfig
	}
	if dims := embedder.Dimensions(); dims > 0 && dims != store.Dimensionality() {
		return nil, DimensionMismatch("embedder", store.Dimensionality(), dims)
	}

	m := &Manager{
		store:    store,
		embedder: embedder,
		config:   config,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "memory")
	return m, nil
}

// Result is the outcome of an operation that carries no payload.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MemorizeResult is the outcome of Memorize.
type MemorizeResult struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RecallResult is the outcome of Recall. Memories keep the search ranking.
type RecallResult struct {
	Success  bool          `json:"success"`
	Memories []MemoryEntry `json:"memories,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type memorizeOptions struct {
	metadata Metadata
	category string
}

// MemorizeOption customises a single Memorize call.
type MemorizeOption func(*memorizeOptions)

// WithMetadata attaches extra metadata. The content, category and
// timestamp keys are always overwritten by the Manager.
func WithMetadata(meta Metadata) MemorizeOption {
	return func(o *memorizeOptions) {
		o.metadata = meta
	}
}

// WithCategory tags the memory.
func WithCategory(category string) MemorizeOption {
	return func(o *memorizeOptions) {
		o.category = category
	}
}

type recallOptions struct {
	filter    Filter
	k         int
	threshold float64
}

// RecallOption customises a single Recall call.
type RecallOption func(*recallOptions)

// WithFilter restricts recall to records whose metadata equals every entry.
func WithFilter(filter Filter) RecallOption {
	return func(o *recallOptions) {
		o.filter = filter
	}
}

// WithK sets the maximum number of memories returned.
func WithK(k int) RecallOption {
	return func(o *recallOptions) {
		o.k = k
	}
}

// WithThreshold sets the minimum similarity a memory must reach.
func WithThreshold(threshold float64) RecallOption {
	return func(o *recallOptions) {
		o.threshold = threshold
	}
}

// Memorize embeds content and stores it with its metadata.
func (m *Manager) Memorize(ctx context.Context, content string, opts ...MemorizeOption) (res MemorizeResult) {
	start := time.Now()
	o := memorizeOptions{category: m.config.DefaultCategory}
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memorize panicked: %v", r)
			res = MemorizeResult{Success: false, Error: err.Error()}
		}
		m.metrics.observe("memorize", start, err)
		if err != nil {
			m.logger.Error("memorize failed", "content", truncateLog(content, 50), "error", err)
		}
	}()

	var id int64
	id, err = m.memorize(ctx, content, o)
	if err != nil {
		return MemorizeResult{Success: false, Error: err.Error()}
	}

	m.logger.Debug("stored memory", "id", id, "category", o.category)
	return MemorizeResult{
		Success: true,
		ID:      id,
		Message: "Memory successfully stored",
	}
}

func (m *Manager) memorize(ctx context.Context, content string, o memorizeOptions) (int64, error) {
	// Generate embedding
	embedding, err := m.embed(ctx, content)
	if err != nil {
		return 0, err
	}

	// Explicit fields win over caller metadata
	meta := make(Metadata, len(o.metadata)+3)
	for k, v := range o.metadata {
		meta[k] = v
	}
	meta[KeyContent] = content
	meta[KeyCategory] = o.category
	meta[KeyTimestamp] = m.now().UnixMilli()

	id, err := m.store.Insert(ctx, embedding, meta)
	if err != nil {
		return 0, fmt.Errorf("store memory: %w", err)
	}
	return id, nil
}

// Recall embeds query and returns the most similar stored memories.
func (m *Manager) Recall(ctx context.Context, query string, opts ...RecallOption) (res RecallResult) {
	start := time.Now()
	o := recallOptions{
		k:         m.config.DefaultK,
		threshold: m.config.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recall panicked: %v", r)
			res = RecallResult{Success: false, Error: err.Error()}
		}
		m.metrics.observe("recall", start, err)
		if err != nil {
			m.logger.Error("recall failed", "query", truncateLog(query, 50), "error", err)
		}
	}()

	var memories []MemoryEntry
	memories, err = m.recall(ctx, query, o)
	if err != nil {
		return RecallResult{Success: false, Error: err.Error()}
	}

	m.metrics.observeRecalled(len(memories))
	m.logger.Debug("recalled memories", "count", len(memories), "query", truncateLog(query, 50))
	return RecallResult{Success: true, Memories: memories}
}

func (m *Manager) recall(ctx context.Context, query string, o recallOptions) ([]MemoryEntry, error) {
	// Embed query
	embedding, err := m.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(embedding) != m.store.Dimensionality() {
		return nil, DimensionMismatch("query embedding", m.store.Dimensionality(), len(embedding))
	}

	// Search a snapshot of the store
	records, err := m.store.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	scored, err := Search(records, embedding, SearchOptions{
		Filter:    o.filter,
		K:         o.k,
		Threshold: o.threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	memories := make([]MemoryEntry, len(scored))
	for i, s := range scored {
		memories[i] = MemoryEntry{
			Content:    s.Record.Metadata.String(KeyContent),
			Category:   s.Record.Metadata.String(KeyCategory),
			Similarity: s.Similarity,
			Timestamp:  s.Record.Metadata.Int64(KeyTimestamp),
		}
	}
	return memories, nil
}

// Forget removes every stored memory.
func (m *Manager) Forget(ctx context.Context) Result {
	start := time.Now()
	err := m.store.Clear(ctx)
	m.metrics.observe("forget", start, err)
	if err != nil {
		m.logger.Error("forget failed", "error", err)
		return Result{Success: false, Error: err.Error()}
	}
	m.logger.Info("cleared all memories")
	return Result{Success: true}
}

// embed calls the provider and tags any failure as a ProviderError.
func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, ErrProvider) {
			return nil, err
		}
		return nil, &ProviderError{Err: err}
	}
	return embedding, nil
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
