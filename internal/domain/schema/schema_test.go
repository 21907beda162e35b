package schema

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/workflows/internal/domain/document"
)

func TestSchema_Missing(t *testing.T) {
	s := Schema{"title": TypeText, "meta.lang": TypeText}
	got := s.Missing([]string{"title", "meta", "meta.lang", "body"})
	if !reflect.DeepEqual(got, []string{"body"}) {
		t.Errorf("Missing = %v, want [body]", got)
	}
	if s.Missing(nil) != nil {
		t.Error("no fields means nothing missing")
	}
}

func TestSchema_Merge(t *testing.T) {
	a := Schema{"x": TypeText}
	b := Schema{"x": TypeNumeric, "y": TypeBool}
	m := a.Merge(b)
	if m["x"] != TypeText || m["y"] != TypeBool {
		t.Errorf("Merge = %v", m)
	}
	if len(a) != 1 {
		t.Error("Merge must not mutate the receiver")
	}
}

func TestInfer(t *testing.T) {
	docs := document.List{
		{
			"_id":               "1",
			"title":             "hello",
			"n":                 3,
			"ok":                true,
			"meta":              map[string]any{"lang": "en"},
			"title_ada_vector_": []float64{0.1, 0.2},
			"parts":             []any{map[string]any{"t": "a"}},
			"tags":              []any{"a", "b"},
		},
		{"_id": "2", "n": "not a number"},
	}
	s := Infer(docs)

	want := Schema{
		"title":             TypeText,
		"n":                 TypeNumeric,
		"ok":                TypeBool,
		"meta":              TypeDict,
		"meta.lang":         TypeText,
		"title_ada_vector_": TypeVector,
		"parts":             TypeChunk,
		"tags":              TypeArray,
	}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("Infer = %v\nwant %v", s, want)
	}
	if got := s.Fields(); got[0] != "meta" {
		t.Errorf("Fields not sorted: %v", got)
	}
}
