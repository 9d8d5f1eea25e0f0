// Package chromem is a store.Backend on chromem-go, a pure Go embedded
// vector database with optional gob persistence.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
)

const (
	seqDocID  = "seq"
	keyNextID = "next_id"
	keyDims   = "dimensionality"
	seqSuffix = "__seq"
)

// Options configures the chromem backend.
type Options struct {
	// Path persists the database to this directory. Empty keeps everything
	// in memory.
	Path string

	// Compress gzips persisted documents.
	Compress bool

	Logger *slog.Logger
}

// Backend stores each record as one chromem document. The document content
// holds the full JSON record; the document embedding only exists because
// chromem requires one.
//
// The ID sequence lives in a separate one-document collection so Clear can
// drop the record collection without resetting it.
type Backend struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	db     *chromem.DB
	name   string
	col    *chromem.Collection
	seq    *chromem.Collection
	nextID int64
	dims   int
}

// New creates an unopened chromem backend.
func New(opts Options) *Backend {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		opts:   opts,
		logger: logger.With("component", "chromem"),
	}
}

// noEmbedding keeps chromem from falling back to a remote embedding API.
// Every document and query arrives with its vector.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem backend: embeddings must be precomputed")
}

func (b *Backend) Open(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		if b.opts.Path != "" {
			db, err := chromem.NewPersistentDB(b.opts.Path, b.opts.Compress)
			if err != nil {
				return fmt.Errorf("open chromem db: %w", err)
			}
			b.db = db
		} else {
			b.db = chromem.NewDB()
		}
	}

	col, err := b.db.GetOrCreateCollection(name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	seq, err := b.db.GetOrCreateCollection(name+seqSuffix, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("create sequence collection: %w", err)
	}
	b.name, b.col, b.seq = name, col, seq

	// Restore the sequence persisted by an earlier process
	if doc, err := seq.GetByID(ctx, seqDocID); err == nil {
		b.nextID, _ = strconv.ParseInt(doc.Metadata[keyNextID], 10, 64)
		b.dims, _ = strconv.Atoi(doc.Metadata[keyDims])
	}

	b.logger.Debug("opened collection", "name", name, "documents", col.Count(), "next_id", b.nextID)
	return nil
}

func (b *Backend) Insert(ctx context.Context, rec memory.VectorRecord) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID + 1
	dims := len(rec.Embedding)
	if b.dims == 0 {
		b.dims = dims
	}

	// Persist the sequence first so a crash never hands an ID out twice
	if err := b.seq.AddDocument(ctx, chromem.Document{
		ID:        seqDocID,
		Content:   seqDocID,
		Embedding: []float32{1},
		Metadata: map[string]string{
			keyNextID: strconv.FormatInt(id, 10),
			keyDims:   strconv.Itoa(b.dims),
		},
	}); err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	b.nextID = id

	rec.ID = id
	content, err := store.EncodeRecord(rec)
	if err != nil {
		return 0, err
	}

	doc := chromem.Document{
		ID:        docID(id),
		Content:   string(content),
		Embedding: documentEmbedding(rec.Embedding),
		Metadata:  map[string]string{"id": docID(id)},
	}
	if err := b.col.AddDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

func (b *Backend) All(ctx context.Context) ([]memory.VectorRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.col.Count()
	if n == 0 || b.dims == 0 {
		return []memory.VectorRecord{}, nil
	}

	// chromem has no list call; a query for every document returns them all
	results, err := b.col.QueryEmbedding(ctx, unitVector(b.dims), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	records := make([]memory.VectorRecord, 0, len(results))
	for _, r := range results {
		rec, err := store.DecodeRecord([]byte(r.Content))
		if err != nil {
			b.logger.Warn("skipping unreadable document", "id", r.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// OldestIDs parses document IDs from a match-all query. Record content is
// not decoded.
func (b *Backend) OldestIDs(ctx context.Context, n int) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := b.col.Count()
	if n <= 0 || count == 0 || b.dims == 0 {
		return []int64{}, nil
	}
	results, err := b.col.QueryEmbedding(ctx, unitVector(b.dims), count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			b.logger.Warn("skipping document with foreign id", "id", r.ID)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if n < len(ids) {
		ids = ids[:n]
	}
	return ids, nil
}

func (b *Backend) Delete(ctx context.Context, ids ...int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	docIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := b.col.GetByID(ctx, docID(id)); err == nil {
			docIDs = append(docIDs, docID(id))
		}
	}
	if len(docIDs) == 0 {
		return nil
	}
	if err := b.col.Delete(ctx, nil, nil, docIDs...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (b *Backend) Count(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.col.Count(), nil
}

func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.db.DeleteCollection(b.name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := b.db.GetOrCreateCollection(b.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	b.col = col
	return nil
}

// Close is a no-op: chromem writes each document as it is added.
func (b *Backend) Close() error { return nil }

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// documentEmbedding returns vec, or a unit placeholder for the zero vector
// which chromem would otherwise normalize into NaNs.
func documentEmbedding(vec []float32) []float32 {
	if memory.Magnitude(vec) == 0 {
		return unitVector(len(vec))
	}
	return vec
}

func unitVector(dims int) []float32 {
	v := make([]float32, dims)
	if dims > 0 {
		v[0] = 1
	}
	return v
}
