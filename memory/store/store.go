// Package store implements the vector record store: validated, normalized,
// durable CRUD over memory.VectorRecord on top of a pluggable Backend.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/becomeliminal/nim-memory/memory"
)

// CapacityPolicy decides what happens when MaxVectors is reached.
type CapacityPolicy string

const (
	// EvictOldest deletes the lowest IDs after an insert pushes the store
	// over MaxVectors.
	EvictOldest CapacityPolicy = "evict_oldest"

	// RejectNew fails inserts with memory.ErrCapacityExceeded once the
	// store holds MaxVectors records.
	RejectNew CapacityPolicy = "reject"
)

// Unlimited disables the MaxVectors cap.
const Unlimited = -1

// Config configures a Store.
type Config struct {
	// Name identifies the store inside its backend.
	// Default: "GeminiNanoVectors"
	Name string

	// Dimensionality is the fixed embedding length D.
	// Default: 384 (all-MiniLM-L6-v2 and most small embedding models)
	Dimensionality int

	// MaxVectors caps the number of records. Use Unlimited to disable.
	// Default: 5000
	MaxVectors int

	// CapacityPolicy applies when MaxVectors is reached.
	// Default: EvictOldest
	CapacityPolicy CapacityPolicy

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the store defaults.
func DefaultConfig() Config {
	return Config{
		Name:           "GeminiNanoVectors",
		Dimensionality: 384,
		MaxVectors:     5000,
		CapacityPolicy: EvictOldest,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Dimensionality == 0 {
		c.Dimensionality = def.Dimensionality
	}
	if c.MaxVectors == 0 {
		c.MaxVectors = def.MaxVectors
	}
	if c.CapacityPolicy == "" {
		c.CapacityPolicy = def.CapacityPolicy
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Store is a named collection of fixed-length, unit-normalized vectors.
//
// A Store is safe for concurrent use. Writes are serialized; reads each see
// an independent snapshot taken when they run.
type Store struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex // serializes writes
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open initializes the store on backend, creating its persisted structure
// if needed. The returned Store owns backend and closes it on Close.
func Open(ctx context.Context, backend Backend, cfg Config) (*Store, error) {
	if backend == nil {
		return nil, errors.New("store: backend is required")
	}
	cfg = cfg.withDefaults()
	if cfg.Dimensionality < 0 {
		return nil, &memory.ValidationError{Field: "dimensionality", Reason: "must be positive"}
	}
	switch cfg.CapacityPolicy {
	case EvictOldest, RejectNew:
	default:
		return nil, &memory.ValidationError{Field: "capacity_policy", Reason: "unknown policy " + string(cfg.CapacityPolicy)}
	}

	if err := backend.Open(ctx, cfg.Name); err != nil {
		return nil, memory.Unavailable("open", err)
	}

	logger := cfg.Logger.With("component", "store", "store", cfg.Name)
	logger.Debug("opened vector store", "dimensionality", cfg.Dimensionality, "max_vectors", cfg.MaxVectors)

	return &Store{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Name returns the store identifier.
func (s *Store) Name() string { return s.cfg.Name }

// Dimensionality returns D, the required embedding length.
func (s *Store) Dimensionality() int { return s.cfg.Dimensionality }

// MaxVectors returns the configured capacity.
func (s *Store) MaxVectors() int { return s.cfg.MaxVectors }

// Insert validates, normalizes and commits a new record, returning its ID.
// A failed insert leaves the store unchanged.
func (s *Store) Insert(ctx context.Context, embedding []float32, metadata memory.Metadata) (int64, error) {
	if len(embedding) != s.cfg.Dimensionality {
		return 0, memory.DimensionMismatch("embedding", s.cfg.Dimensionality, len(embedding))
	}
	if err := memory.CheckFinite("embedding", embedding); err != nil {
		return 0, err
	}
	meta, err := memory.CanonicalMetadata(metadata)
	if err != nil {
		return 0, err
	}

	rec := memory.VectorRecord{
		Embedding:  memory.Normalize(embedding),
		Metadata:   meta,
		InsertedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return 0, &memory.StorageUnavailableError{Op: "insert", Err: errClosed}
	}

	if s.cfg.CapacityPolicy == RejectNew && s.cfg.MaxVectors > 0 {
		n, err := s.backend.Count(ctx)
		if err != nil {
			return 0, memory.Unavailable("count", err)
		}
		if n >= s.cfg.MaxVectors {
			return 0, memory.ErrCapacityExceeded
		}
	}

	id, err := s.backend.Insert(ctx, rec)
	if err != nil {
		return 0, memory.Unavailable("insert", err)
	}

	if s.cfg.CapacityPolicy == EvictOldest && s.cfg.MaxVectors > 0 {
		if err := s.evictOldest(ctx); err != nil {
			// The insert is committed; the store stays over capacity until
			// the next successful eviction.
			s.logger.Warn("capacity eviction failed", "error", err)
		}
	}
	return id, nil
}

// evictOldest deletes the lowest IDs until the store fits MaxVectors.
// Callers hold s.mu.
func (s *Store) evictOldest(ctx context.Context) error {
	n, err := s.backend.Count(ctx)
	if err != nil {
		return err
	}
	excess := n - s.cfg.MaxVectors
	if excess <= 0 {
		return nil
	}

	ids, err := s.backend.OldestIDs(ctx, excess)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.backend.Delete(ctx, ids...); err != nil {
		return err
	}
	s.logger.Info("evicted oldest records", "count", len(ids), "max_vectors", s.cfg.MaxVectors)
	return nil
}

// FetchAll returns a snapshot of every committed record in no guaranteed
// order.
func (s *Store) FetchAll(ctx context.Context) ([]memory.VectorRecord, error) {
	if s.closed.Load() {
		return nil, &memory.StorageUnavailableError{Op: "fetch", Err: errClosed}
	}
	records, err := s.backend.All(ctx)
	if err != nil {
		return nil, memory.Unavailable("fetch", err)
	}
	if records == nil {
		records = []memory.VectorRecord{}
	}
	return records, nil
}

// Search ranks a fresh snapshot against query.
func (s *Store) Search(ctx context.Context, query []float32, opts memory.SearchOptions) ([]memory.ScoredRecord, error) {
	if len(query) != s.cfg.Dimensionality {
		return nil, memory.DimensionMismatch("query", s.cfg.Dimensionality, len(query))
	}
	records, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return memory.Search(records, query, opts)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, &memory.StorageUnavailableError{Op: "count", Err: errClosed}
	}
	n, err := s.backend.Count(ctx)
	if err != nil {
		return 0, memory.Unavailable("count", err)
	}
	return n, nil
}

// Clear removes every record. IDs keep ascending afterwards.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return &memory.StorageUnavailableError{Op: "clear", Err: errClosed}
	}
	if err := s.backend.Clear(ctx); err != nil {
		return memory.Unavailable("clear", err)
	}
	s.logger.Info("cleared vector store")
	return nil
}

// Close waits for in-flight writes and closes the backend. It is safe to
// call more than once; later calls return the first result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed.Store(true)
		s.closeErr = s.backend.Close()
	})
	return s.closeErr
}

var errClosed = errors.New("store is closed")
