package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/becomeliminal/nim-memory/memory"
)

// EncodeVector packs vec as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decode vector: length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

// EncodeMetadata serializes metadata as a JSON object.
func EncodeMetadata(meta memory.Metadata) ([]byte, error) {
	if meta == nil {
		meta = memory.Metadata{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

// DecodeMetadata parses a JSON object written by EncodeMetadata.
// Numbers come back as float64, matching memory.CanonicalValue.
func DecodeMetadata(data []byte) (memory.Metadata, error) {
	meta := memory.Metadata{}
	if len(data) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

// EncodeRecord serializes a whole record as JSON, for backends that keep
// one opaque value per record.
func EncodeRecord(rec memory.VectorRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return b, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) (memory.VectorRecord, error) {
	var rec memory.VectorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return memory.VectorRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec.Metadata == nil {
		rec.Metadata = memory.Metadata{}
	}
	return rec, nil
}
