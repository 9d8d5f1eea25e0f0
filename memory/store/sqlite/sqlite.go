// Package sqlite is the default embedded store.Backend: one table per store
// in a single SQLite file.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
)

// Backend persists records in SQLite. AUTOINCREMENT keeps IDs ascending and
// unique across deletes and Clear.
type Backend struct {
	path  string
	db    *sqlx.DB
	table string
}

type row struct {
	ID         int64  `db:"id"`
	Embedding  []byte `db:"embedding"`
	Metadata   string `db:"metadata"`
	InsertedAt int64  `db:"inserted_at"`
}

// New creates a backend for the database file at path. An empty path keeps
// the database in memory for the life of the process.
func New(path string) *Backend {
	return &Backend{path: path}
}

func (b *Backend) dsn() string {
	if b.path == "" {
		return "file::memory:?_busy_timeout=5000"
	}
	return "file:" + b.path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func (b *Backend) Open(ctx context.Context, name string) error {
	if b.db == nil {
		db, err := sqlx.ConnectContext(ctx, "sqlite3", b.dsn())
		if err != nil {
			return fmt.Errorf("connect sqlite: %w", err)
		}
		// One writer at a time; also pins the in-memory database to a
		// single connection.
		db.SetMaxOpenConns(1)
		b.db = db
	}

	b.table = quoteIdent(name)
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			embedding   BLOB    NOT NULL,
			metadata    TEXT    NOT NULL,
			inserted_at INTEGER NOT NULL
		)`, b.table)
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (b *Backend) Insert(ctx context.Context, rec memory.VectorRecord) (int64, error) {
	meta, err := store.EncodeMetadata(rec.Metadata)
	if err != nil {
		return 0, err
	}
	res, err := b.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (embedding, metadata, inserted_at) VALUES (?, ?, ?)`, b.table),
		store.EncodeVector(rec.Embedding), string(meta), rec.InsertedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read insert id: %w", err)
	}
	return id, nil
}

func (b *Backend) All(ctx context.Context) ([]memory.VectorRecord, error) {
	var rows []row
	if err := b.db.SelectContext(ctx, &rows,
		fmt.Sprintf(`SELECT id, embedding, metadata, inserted_at FROM %s`, b.table),
	); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	records := make([]memory.VectorRecord, 0, len(rows))
	for _, r := range rows {
		vec, err := store.DecodeVector(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		meta, err := store.DecodeMetadata([]byte(r.Metadata))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		records = append(records, memory.VectorRecord{
			ID:         r.ID,
			Embedding:  vec,
			Metadata:   meta,
			InsertedAt: time.Unix(0, r.InsertedAt).UTC(),
		})
	}
	return records, nil
}

func (b *Backend) OldestIDs(ctx context.Context, n int) ([]int64, error) {
	ids := []int64{}
	if n <= 0 {
		return ids, nil
	}
	if err := b.db.SelectContext(ctx, &ids,
		fmt.Sprintf(`SELECT id FROM %s ORDER BY id LIMIT ?`, b.table), n,
	); err != nil {
		return nil, fmt.Errorf("select oldest ids: %w", err)
	}
	return ids, nil
}

func (b *Backend) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE id IN (?)`, b.table), ids)
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, b.table)); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Clear deletes rows but leaves sqlite_sequence alone, so IDs keep ascending.
func (b *Backend) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, b.table)); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
