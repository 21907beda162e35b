package filter

import (
	"fmt"
	"hash/fnv"
)

// MaxConditionsPerGroup is the maximum number of clauses in one and/or group.
const MaxConditionsPerGroup = 32

// Type names the kind of predicate.
type Type string

// Predicate kinds.
const (
	TypeExists  Type = "exists"
	TypeExact   Type = "exact"
	TypeNumeric Type = "numeric"
	TypeIDs     Type = "ids"
	TypeModulo  Type = "modulo"
	TypeAnd     Type = "and"
	TypeOr      Type = "or"
)

// Condition is the comparison applied by a predicate.
type Condition string

// Comparison conditions.
const (
	Eq  Condition = "=="
	Neq Condition = "!="
	Gt  Condition = ">"
	Gte Condition = ">="
	Lt  Condition = "<"
	Lte Condition = "<="
)

// Filter is one predicate over documents. Groups (and/or) nest further filters.
// The engine only builds exists, not-exists and modulo predicates; everything
// else is passed through to the dataset untouched.
type Filter struct {
	Field     string    `json:"field,omitempty"`
	Type      Type      `json:"filter_type"`
	Condition Condition `json:"condition,omitempty"`
	Value     any       `json:"condition_value,omitempty"`
	Filters   []Filter  `json:"filters,omitempty"`
}

// Modulus is the value of a modulo predicate: hash(field) mod Divisor == Remainder.
type Modulus struct {
	Divisor   int `json:"divisor"`
	Remainder int `json:"remainder"`
}

// Exists matches documents where field is present.
func Exists(field string) Filter {
	return Filter{Field: field, Type: TypeExists, Condition: Eq}
}

// NotExists matches documents where field is absent.
func NotExists(field string) Filter {
	return Filter{Field: field, Type: TypeExists, Condition: Neq}
}

// Equals matches documents whose field equals value.
func Equals(field string, value any) Filter {
	return Filter{Field: field, Type: TypeExact, Condition: Eq, Value: value}
}

// Numeric compares a numeric field against value.
func Numeric(field string, cond Condition, value float64) Filter {
	return Filter{Field: field, Type: TypeNumeric, Condition: cond, Value: value}
}

// Between matches documents whose numeric field falls inside r.
func Between(field string, r Range) Filter {
	return Filter{Field: field, Type: TypeNumeric, Value: r}
}

// IDs matches documents whose identifier is one of ids.
func IDs(ids ...string) Filter {
	return Filter{Field: "_id", Type: TypeIDs, Condition: Eq, Value: ids}
}

// Modulo matches documents where HashID(field) mod divisor == remainder.
func Modulo(field string, divisor, remainder int) Filter {
	return Filter{Field: field, Type: TypeModulo, Condition: Eq, Value: Modulus{Divisor: divisor, Remainder: remainder}}
}

// And groups filters that must all hold.
func And(filters ...Filter) Filter {
	return Filter{Type: TypeAnd, Filters: filters}
}

// Or groups filters of which at least one must hold.
func Or(filters ...Filter) Filter {
	return Filter{Type: TypeOr, Filters: filters}
}

// Validate checks group sizes and modulo parameters recursively.
func (f Filter) Validate() error {
	switch f.Type {
	case TypeAnd, TypeOr:
		if len(f.Filters) > MaxConditionsPerGroup {
			return fmt.Errorf("too many %s clauses (max %d)", f.Type, MaxConditionsPerGroup)
		}
		for _, sub := range f.Filters {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	case TypeModulo:
		m, ok := f.Value.(Modulus)
		if !ok || m.Divisor <= 0 || m.Remainder < 0 || m.Remainder >= m.Divisor {
			return fmt.Errorf("invalid modulo on %q: %v", f.Field, f.Value)
		}
	case "":
		return fmt.Errorf("filter on %q has no type", f.Field)
	}
	return nil
}

// Refresh builds the incremental clause for one operator: every input exists
// and at least one output is missing. ok is false when the operator declares
// no outputs, in which case nothing can be skipped.
func Refresh(inputs, outputs []string) (Filter, bool) {
	if len(outputs) == 0 {
		return Filter{}, false
	}
	clauses := make([]Filter, 0, len(inputs)+1)
	for _, in := range inputs {
		clauses = append(clauses, Exists(in))
	}
	missing := make([]Filter, len(outputs))
	for i, out := range outputs {
		missing[i] = NotExists(out)
	}
	clauses = append(clauses, Or(missing...))
	return And(clauses...), true
}

// Shard restricts a run to one worker's share of the id space.
// ok is false when sharding does not apply.
func Shard(workerNumber, totalWorkers int) (Filter, bool) {
	if totalWorkers <= 1 || workerNumber < 0 || workerNumber >= totalWorkers {
		return Filter{}, false
	}
	return Modulo("_id", totalWorkers, workerNumber), true
}

// HashID is the stable 64-bit FNV-1a hash used by modulo predicates.
func HashID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
