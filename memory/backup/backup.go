// Package backup moves a store's records in and out as zstd-compressed
// JSON lines, locally or through S3-compatible object storage.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/becomeliminal/nim-memory/memory"
)

// Source is the read side of a store.
type Source interface {
	FetchAll(ctx context.Context) ([]memory.VectorRecord, error)
}

// Sink is the write side of a store.
type Sink interface {
	Insert(ctx context.Context, embedding []float32, metadata memory.Metadata) (int64, error)
}

// Export writes every record of src to w, one JSON object per line in
// ascending ID order, and returns the number written.
func Export(ctx context.Context, src Source, w io.Writer) (int, error) {
	records, err := src.FetchAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}

	lines := json.NewEncoder(enc)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			enc.Close()
			return i, err
		}
		if err := lines.Encode(rec); err != nil {
			enc.Close()
			return i, fmt.Errorf("encode record %d: %w", rec.ID, err)
		}
	}
	if err := enc.Close(); err != nil {
		return len(records), fmt.Errorf("flush zstd writer: %w", err)
	}
	return len(records), nil
}

// Import inserts every record read from r into dst and returns the number
// inserted. Records get fresh IDs and insertion times from dst; embeddings
// and metadata are kept. Import stops at the first failing record.
func Import(ctx context.Context, dst Sink, r io.Reader) (int, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	lines := json.NewDecoder(dec)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var rec memory.VectorRecord
		if err := lines.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("decode record %d: %w", n+1, err)
		}
		if _, err := dst.Insert(ctx, rec.Embedding, rec.Metadata); err != nil {
			return n, fmt.Errorf("insert record %d: %w", rec.ID, err)
		}
		n++
	}
}
