package document

import (
	"fmt"
	"reflect"
	"sort"
)

// IDField is the identifier key. It is preserved across every transform.
const IDField = "_id"

// Document is one semi-structured record addressed by dotted paths.
// Values are JSON-shaped: strings, numbers, booleans, nested mappings,
// sequences and float vectors.
type Document map[string]any

// New creates a document with the given identifier.
func New(id string) Document {
	return Document{IDField: id}
}

// ID returns the document identifier, or "" when absent.
func (d Document) ID() string {
	v, ok := d[IDField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Get reads the value at a dotted path.
func (d Document) Get(path string) (any, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	return d.GetPath(p)
}

// GetPath reads the value at a parsed path.
func (d Document) GetPath(p Path) (any, bool) {
	return lookup(map[string]any(d), p)
}

// Set writes value at a dotted path. Missing intermediate mappings are created;
// sequence indexes past the end are clamped to the last element.
func (d Document) Set(path string, value any) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return d.SetPath(p, value)
}

// SetPath writes value at a parsed path.
func (d Document) SetPath(p Path, value any) error {
	if err := assign(map[string]any(d), p, value); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

// Exists reports whether a value is present at the path.
func (d Document) Exists(path string) bool {
	_, ok := d.Get(path)
	return ok
}

// Keys returns the top-level field names in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasPayload reports whether the document carries any field besides the identifier.
func (d Document) HasPayload() bool {
	for k := range d {
		if k != IDField {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// Select returns a copy holding only the identifier and the given top-level roots.
// An empty selection keeps every field.
func (d Document) Select(fields []string) Document {
	if len(fields) == 0 {
		return d.Clone()
	}
	out := Document{}
	if id, ok := d[IDField]; ok {
		out[IDField] = id
	}
	for _, f := range fields {
		p, err := ParsePath(f)
		if err != nil {
			continue
		}
		if v, ok := d[p.Root()]; ok {
			out[p.Root()] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = map[string]any(Document(e).Clone())
		}
		return out
	case []Document:
		out := make([]Document, len(t))
		for i, e := range t {
			out[i] = e.Clone()
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case []float32:
		return append([]float32(nil), t...)
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Document:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

// asSlice views any slice value (except raw bytes) as []any.
func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
