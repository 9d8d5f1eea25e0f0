// Package postgres is a store.Backend on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
)

var tableName = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Backend keeps one table per store. BIGSERIAL provides the ID sequence;
// TRUNCATE without RESTART IDENTITY keeps it running across Clear.
type Backend struct {
	connStr string
	pool    *pgxpool.Pool
	table   string
}

// New creates a backend for the given connection string.
func New(connStr string) *Backend {
	return &Backend{connStr: connStr}
}

// Table returns the SQL table used for a store name.
func Table(name string) string {
	return "vectors_" + tableName.ReplaceAllString(name, "_")
}

func (b *Backend) Open(ctx context.Context, name string) error {
	if b.pool == nil {
		pool, err := pgxpool.New(ctx, b.connStr)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("ping postgres: %w", err)
		}
		b.pool = pool
	}

	b.table = pgx.Identifier{Table(name)}.Sanitize()
	_, err := b.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			embedding   BYTEA       NOT NULL,
			metadata    JSONB       NOT NULL,
			inserted_at TIMESTAMPTZ NOT NULL
		)`, b.table))
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (b *Backend) Insert(ctx context.Context, rec memory.VectorRecord) (int64, error) {
	meta, err := store.EncodeMetadata(rec.Metadata)
	if err != nil {
		return 0, err
	}
	var id int64
	err = b.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (embedding, metadata, inserted_at) VALUES ($1, $2::jsonb, $3) RETURNING id`, b.table),
		store.EncodeVector(rec.Embedding), string(meta), rec.InsertedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

func (b *Backend) All(ctx context.Context) ([]memory.VectorRecord, error) {
	rows, err := b.pool.Query(ctx, fmt.Sprintf(`SELECT id, embedding, metadata::text, inserted_at FROM %s`, b.table))
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	records := []memory.VectorRecord{}
	for rows.Next() {
		var (
			id         int64
			embedding  []byte
			metadata   string
			insertedAt time.Time
		)
		if err := rows.Scan(&id, &embedding, &metadata, &insertedAt); err != nil {
			return nil, err
		}
		vec, err := store.DecodeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		meta, err := store.DecodeMetadata([]byte(metadata))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		records = append(records, memory.VectorRecord{
			ID:         id,
			Embedding:  vec,
			Metadata:   meta,
			InsertedAt: insertedAt.UTC(),
		})
	}
	return records, rows.Err()
}

func (b *Backend) OldestIDs(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return []int64{}, nil
	}
	rows, err := b.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id LIMIT $1`, b.table), n)
	if err != nil {
		return nil, fmt.Errorf("select oldest ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan oldest ids: %w", err)
	}
	return ids, nil
}

func (b *Backend) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := b.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, b.table), ids); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, b.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (b *Backend) Clear(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, b.table)); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}
