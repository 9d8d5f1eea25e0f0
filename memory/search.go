package memory

import (
	"fmt"
	"sort"
)

// SearchOptions controls a similarity search over a snapshot.
type SearchOptions struct {
	// Filter keeps only records whose metadata equals every entry exactly.
	Filter Filter

	// K caps the number of results. K <= 0 yields no results.
	K int

	// Threshold drops records scoring below it.
	Threshold float64
}

// ScoredRecord is a record paired with its similarity to the query.
type ScoredRecord struct {
	Record     VectorRecord
	Similarity float64
}

// Search ranks records against query. It never mutates records and never
// pads the result: an empty or short slice is a valid outcome.
//
// Results are ordered by similarity descending, ties broken by ascending ID,
// so identical queries over identical snapshots always agree.
func Search(records []VectorRecord, query []float32, opts SearchOptions) ([]ScoredRecord, error) {
	filter, err := canonicalFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	if err := CheckFinite("query", query); err != nil {
		return nil, err
	}
	if opts.K <= 0 {
		return []ScoredRecord{}, nil
	}

	q := Normalize(query)

	scored := make([]ScoredRecord, 0, len(records))
	for _, rec := range records {
		if !matches(rec.Metadata, filter) {
			continue
		}
		if len(rec.Embedding) != len(q) {
			return nil, DimensionMismatch("query", len(rec.Embedding), len(q))
		}
		sim := Dot(q, rec.Embedding)
		// Written so a NaN similarity is dropped as well
		if !(sim >= opts.Threshold) {
			continue
		}
		scored = append(scored, ScoredRecord{Record: rec, Similarity: sim})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})

	if len(scored) > opts.K {
		scored = scored[:opts.K]
	}
	return scored, nil
}

func canonicalFilter(filter Filter) (Filter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	out := make(Filter, len(filter))
	for k, v := range filter {
		cv, ok := CanonicalValue(v)
		if !ok {
			return nil, &ValidationError{
				Field:  "filter." + k,
				Reason: fmt.Sprintf("non-scalar value of type %T", v),
			}
		}
		out[k] = cv
	}
	return out, nil
}

// matches reports whether meta carries every filter entry. A missing key
// never matches, not even a nil filter value.
func matches(meta Metadata, filter Filter) bool {
	for k, want := range filter {
		raw, ok := meta[k]
		if !ok {
			return false
		}
		got, ok := CanonicalValue(raw)
		if !ok || got != want {
			return false
		}
	}
	return true
}
