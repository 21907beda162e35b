package filter

import (
	"fmt"

	"github.com/kailas-cloud/workflows/internal/domain/document"
)

// Match reports whether doc satisfies every filter. Stores that cannot push
// predicates down evaluate them with Match after reading.
func Match(doc document.Document, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(doc) {
			return false
		}
	}
	return true
}

// Matches evaluates a single filter against doc.
// An empty group imposes no constraint.
func (f Filter) Matches(doc document.Document) bool {
	switch f.Type {
	case TypeAnd:
		return Match(doc, f.Filters)
	case TypeOr:
		if len(f.Filters) == 0 {
			return true
		}
		for _, sub := range f.Filters {
			if sub.Matches(doc) {
				return true
			}
		}
		return false
	case TypeExists:
		return negate(f.Condition, doc.Exists(f.Field))
	case TypeExact:
		v, ok := doc.Get(f.Field)
		return negate(f.Condition, ok && equalValues(v, f.Value))
	case TypeNumeric:
		return matchNumeric(doc, f)
	case TypeIDs:
		ids, _ := f.Value.([]string)
		id := doc.ID()
		for _, candidate := range ids {
			if candidate == id {
				return true
			}
		}
		return false
	case TypeModulo:
		m, ok := f.Value.(Modulus)
		if !ok || m.Divisor <= 0 {
			return false
		}
		v, ok := doc.Get(f.Field)
		if !ok {
			return false
		}
		return HashID(fmt.Sprint(v))%uint64(m.Divisor) == uint64(m.Remainder)
	default:
		return false
	}
}

func negate(c Condition, v bool) bool {
	if c == Neq {
		return !v
	}
	return v
}

func equalValues(a, b any) bool {
	fa, okA := document.Number(a)
	fb, okB := document.Number(b)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func matchNumeric(doc document.Document, f Filter) bool {
	raw, ok := doc.Get(f.Field)
	if !ok {
		return false
	}
	v, ok := document.Number(raw)
	if !ok {
		return false
	}
	if r, ok := f.Value.(Range); ok {
		return r.Contains(v)
	}
	want, ok := document.Number(f.Value)
	if !ok {
		return false
	}
	switch f.Condition {
	case Eq, "":
		return v == want
	case Neq:
		return v != want
	case Gt:
		return v > want
	case Gte:
		return v >= want
	case Lt:
		return v < want
	case Lte:
		return v <= want
	default:
		return false
	}
}
