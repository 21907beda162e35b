package document

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/kailas-cloud/workflows/internal/domain"
)

// Reserved field-name markers.
const (
	VectorSuffix      = "_vector_"
	ChunkVectorSuffix = "_chunkvector_"
	ChunkSuffix       = "_chunk_"
)

// IsVectorField reports whether name marks a fixed-length numeric vector.
func IsVectorField(name string) bool {
	return strings.HasSuffix(name, VectorSuffix) || strings.HasSuffix(name, ChunkVectorSuffix)
}

// IsChunkField reports whether a field holds chunks: a sequence of sub-documents.
// The backend cannot update part of a chunk, so chunk fields travel whole.
func IsChunkField(name string, value any) bool {
	if strings.HasSuffix(name, ChunkSuffix) {
		return true
	}
	seq, ok := asSlice(value)
	if !ok || len(seq) == 0 {
		return false
	}
	for _, e := range seq {
		if _, isMap := asMap(e); !isMap {
			return false
		}
	}
	return true
}

// Diff returns the part of updated worth uploading over old.
//
// The result carries _id, every field that is new or differs under field-aware
// equality, and every chunk field in full. The bool reports whether anything
// besides identical chunk fields changed; callers drop the document when it is false.
func Diff(old, updated Document) (Document, bool) {
	out := Document{}
	if id, ok := updated[IDField]; ok {
		out[IDField] = id
	}

	changed := false
	for _, field := range updated.Keys() {
		if field == IDField {
			continue
		}
		nv := updated[field]
		ov, had := old[field]
		differs := !had || Different(field, ov, nv)

		if IsChunkField(field, nv) {
			out[field] = nv
			changed = changed || differs
			continue
		}
		if differs {
			out[field] = nv
			changed = true
		}
	}
	return out, changed
}

// DiffList diffs two positionally aligned batches and omits unchanged documents.
func DiffList(old, updated List) (List, error) {
	if len(old) != len(updated) {
		return nil, fmt.Errorf("diff %d old against %d new documents: %w",
			len(old), len(updated), domain.ErrLengthMismatch)
	}
	out := make(List, 0, len(updated))
	for i := range updated {
		d, changed := Diff(old[i], updated[i])
		if !changed {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Different compares two values of the named field.
//
// Vector fields holding numeric sequences differ only when
// sum(|a_i|) - sum(|b_i|) taken elementwise is strictly positive. This matches
// what the backend has always accepted and is intentionally not a distance.
func Different(field string, a, b any) bool {
	if IsVectorField(field) {
		va, okA := toFloats(a)
		vb, okB := toFloats(b)
		if okA && okB {
			return vectorsDiffer(va, vb)
		}
	}
	return valuesDiffer(a, b)
}

func vectorsDiffer(a, b []float64) bool {
	if len(a) != len(b) {
		return true
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i]) - math.Abs(b[i])
	}
	return sum > 0
}

func valuesDiffer(a, b any) bool {
	ma, okA := asMap(a)
	mb, okB := asMap(b)
	if okA && okB {
		ca, errA := json.Marshal(ma)
		cb, errB := json.Marshal(mb)
		if errA != nil || errB != nil {
			return !reflect.DeepEqual(ma, mb)
		}
		return string(ca) != string(cb)
	}

	sa, okA := asSlice(a)
	sb, okB := asSlice(b)
	if okA && okB {
		if len(sa) != len(sb) {
			return true
		}
		for i := range sa {
			if valuesDiffer(sa[i], sb[i]) {
				return true
			}
		}
		return false
	}

	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa != fb
	}
	return !reflect.DeepEqual(a, b)
}

func toFloats(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return t, true
	case []float32:
		out := make([]float64, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out, true
	}
	seq, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(seq))
	for i, e := range seq {
		f, ok := toFloat(e)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Number converts any numeric value to float64.
func Number(v any) (float64, bool) { return toFloat(v) }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
