package schema

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/workflows/internal/domain/document"
)

// Field type tags.
const (
	TypeText    = "text"
	TypeNumeric = "numeric"
	TypeBool    = "bool"
	TypeDict    = "dict"
	TypeArray   = "array"
	TypeVector  = "vector"
	TypeChunk   = "chunk"
)

// Schema maps dotted field paths to type tags.
type Schema map[string]string

// Has reports whether path is known, either directly or as the parent of known fields.
func (s Schema) Has(path string) bool {
	if _, ok := s[path]; ok {
		return true
	}
	prefix := path + "."
	for k := range s {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// Missing returns the fields absent from the schema, in input order.
func (s Schema) Missing(fields []string) []string {
	var out []string
	for _, f := range fields {
		if !s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Merge returns a new schema with other's entries added; existing tags win.
func (s Schema) Merge(other Schema) Schema {
	out := make(Schema, len(s)+len(other))
	for k, v := range other {
		out[k] = v
	}
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Fields returns the known paths in sorted order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Infer derives a schema from document values. Nested mappings are flattened
// into dotted paths; the first type seen for a path wins.
func Infer(docs document.List) Schema {
	s := Schema{}
	for _, d := range docs {
		for k, v := range d {
			if k == document.IDField {
				continue
			}
			inferValue(s, k, v)
		}
	}
	return s
}

func inferValue(s Schema, path string, v any) {
	if _, seen := s[path]; seen {
		if m, ok := v.(map[string]any); ok {
			for k, sub := range m {
				inferValue(s, path+"."+k, sub)
			}
		}
		return
	}
	leaf := path[strings.LastIndex(path, ".")+1:]

	switch t := v.(type) {
	case nil:
		return
	case string:
		s[path] = TypeText
	case bool:
		s[path] = TypeBool
	case map[string]any:
		s[path] = TypeDict
		for k, sub := range t {
			inferValue(s, path+"."+k, sub)
		}
	case document.Document:
		inferValue(s, path, map[string]any(t))
	default:
		if _, ok := document.Number(v); ok {
			s[path] = TypeNumeric
			return
		}
		switch {
		case document.IsVectorField(leaf):
			s[path] = TypeVector
		case document.IsChunkField(leaf, v):
			s[path] = TypeChunk
		default:
			s[path] = TypeArray
		}
	}
}
