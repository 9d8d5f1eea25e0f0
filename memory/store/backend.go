package store

import (
	"context"

	"github.com/becomeliminal/nim-memory/memory"
)

// Backend is the persistence layer under a Store.
// Implementations: inmem (tests), sqlite (embedded default), chromem,
// redis, postgres, mongo.
//
// Backends only persist; validation and normalization happen in Store.
// All methods must be safe for concurrent use.
type Backend interface {
	// Open creates the persisted structure for name if it is absent and
	// reuses it otherwise. Calling Open again is harmless.
	Open(ctx context.Context, name string) error

	// Insert commits rec atomically and returns its new ID. IDs ascend with
	// insertion order and are never handed out twice, even after Clear.
	// rec.ID is ignored.
	Insert(ctx context.Context, rec memory.VectorRecord) (int64, error)

	// All returns every committed record in no particular order.
	All(ctx context.Context) ([]memory.VectorRecord, error)

	// OldestIDs returns up to n of the lowest committed IDs in ascending
	// order, without loading the records.
	OldestIDs(ctx context.Context, n int) ([]int64, error)

	// Delete removes the given records. Unknown IDs are ignored.
	Delete(ctx context.Context, ids ...int64) error

	// Count returns the number of committed records.
	Count(ctx context.Context) (int, error)

	// Clear removes every record but keeps the ID sequence.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}
