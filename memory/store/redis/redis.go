// Package redis is a store.Backend on a Redis hash, for agents that share a
// memory across processes.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
)

// DefaultPrefix namespaces every key this backend writes.
const DefaultPrefix = "nim-memory"

// Config holds connection settings.
type Config struct {
	Address  string
	Password string
	Database int

	// Prefix for keys. Default: DefaultPrefix
	Prefix string
}

// Backend keeps each store in two keys: <prefix>:<name>:seq, an INCR
// counter, and <prefix>:<name>:records, a hash of ID to JSON record.
type Backend struct {
	client  redis.UniversalClient
	prefix  string
	seqKey  string
	recsKey string
}

// New connects a backend to the server described by cfg.
func New(cfg Config) *Backend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	return NewWithClient(client, cfg.Prefix)
}

// NewWithClient wraps an existing client. The backend closes it on Close.
func NewWithClient(client redis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) Open(ctx context.Context, name string) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	b.seqKey = fmt.Sprintf("%s:%s:seq", b.prefix, name)
	b.recsKey = fmt.Sprintf("%s:%s:records", b.prefix, name)
	return nil
}

func (b *Backend) Insert(ctx context.Context, rec memory.VectorRecord) (int64, error) {
	id, err := b.client.Incr(ctx, b.seqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	rec.ID = id
	data, err := store.EncodeRecord(rec)
	if err != nil {
		return 0, err
	}
	if err := b.client.HSet(ctx, b.recsKey, strconv.FormatInt(id, 10), data).Err(); err != nil {
		return 0, fmt.Errorf("write record: %w", err)
	}
	return id, nil
}

func (b *Backend) All(ctx context.Context) ([]memory.VectorRecord, error) {
	vals, err := b.client.HVals(ctx, b.recsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	records := make([]memory.VectorRecord, 0, len(vals))
	for _, v := range vals {
		rec, err := store.DecodeRecord([]byte(v))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// OldestIDs reads the hash field names only; record payloads stay on the
// server.
func (b *Backend) OldestIDs(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return []int64{}, nil
	}
	fields, err := b.client.HKeys(ctx, b.recsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read record ids: %w", err)
	}
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("record id %q: %w", f, err)
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
	if len(ids) == 0 {
		return nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatInt(id, 10)
	}
	if err := b.client.HDel(ctx, b.recsKey, fields...).Err(); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	n, err := b.client.HLen(ctx, b.recsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int(n), nil
}

// Clear drops the record hash. The seq counter is left in place.
func (b *Backend) Clear(ctx context.Context) error {
	if err := b.client.Del(ctx, b.recsKey).Err(); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}
