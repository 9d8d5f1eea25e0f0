package memory

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Magnitude returns the Euclidean norm of vec.
func Magnitude(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CheckFinite rejects vectors holding NaN or Inf components, which would
// poison every similarity computed from them.
func CheckFinite(field string, vec []float32) error {
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return &ValidationError{Field: field, Reason: "contains NaN or Inf"}
		}
	}
	return nil
}

// Normalize returns a unit-length copy of vec. The zero vector is returned
// unchanged (as a copy) since it has no direction.
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	mag := Magnitude(vec)
	if mag == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / mag)
	}
	return out
}

// Dot returns the dot product of a and b accumulated in float64.
// Callers must pass vectors of equal length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity compares two vectors of any magnitude. It returns 0 when
// either vector is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	ma, mb := Magnitude(a), Magnitude(b)
	if ma == 0 || mb == 0 {
		return 0
	}
	return Dot(a, b) / (ma * mb)
}

// CanonicalValue maps a metadata or filter value to its stored form:
// strings, bools and nil pass through and every numeric kind becomes float64.
// It reports false for anything else (maps, slices, structs).
func CanonicalValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string, bool, float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	}
	return nil, false
}

// CanonicalMetadata returns a canonicalised copy of meta, or a
// ValidationError naming the first non-scalar field.
func CanonicalMetadata(meta Metadata) (Metadata, error) {
	out := make(Metadata, len(meta))
	for k, v := range meta {
		cv, ok := CanonicalValue(v)
		if !ok {
			return nil, &ValidationError{
				Field:  "metadata." + k,
				Reason: fmt.Sprintf("unsupported value type %T", v),
			}
		}
		out[k] = cv
	}
	return out, nil
}
