package memory_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
)

func TestNormalize(t *testing.T) {
	in := []float32{3, 4}
	out := memory.Normalize(in)

	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)
	assert.Equal(t, []float32{3, 4}, in, "input must not be modified")

	zero := memory.Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, memory.CosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, -1.0, memory.CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, memory.CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, memory.CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestCanonicalValue(t *testing.T) {
	type myString string

	tests := []struct {
		in   any
		want any
		ok   bool
	}{
		{nil, nil, true},
		{"x", "x", true},
		{true, true, true},
		{3, float64(3), true},
		{int64(-7), float64(-7), true},
		{uint8(200), float64(200), true},
		{float32(0.5), float64(0.5), true},
		{json.Number("12.5"), 12.5, true},
		{myString("y"), "y", true},
		{[]string{"a"}, nil, false},
		{map[string]any{}, nil, false},
		{struct{}{}, nil, false},
	}
	for _, tt := range tests {
		got, ok := memory.CanonicalValue(tt.in)
		assert.Equal(t, tt.ok, ok, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}
}

func TestCanonicalMetadata(t *testing.T) {
	got, err := memory.CanonicalMetadata(memory.Metadata{"n": 1, "s": "a"})
	require.NoError(t, err)
	assert.Equal(t, memory.Metadata{"n": float64(1), "s": "a"}, got)

	_, err = memory.CanonicalMetadata(memory.Metadata{"bad": []int{1}})
	var ve *memory.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "metadata.bad", ve.Field)
}
