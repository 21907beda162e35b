package document

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/workflows/internal/domain"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("a.b.0.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p) != 4 {
		t.Fatalf("len = %d, want 4", len(p))
	}
	if p[2].Key != "0" || !p[2].IsIndex || p[2].Index != 0 {
		t.Errorf("segment 2 = %+v, want index 0", p[2])
	}
	if p[1].IsIndex {
		t.Errorf("segment 1 should not be an index")
	}
	if p.String() != "a.b.0.c" {
		t.Errorf("String() = %q", p.String())
	}
	if p.Root() != "a" {
		t.Errorf("Root() = %q", p.Root())
	}
}

func TestParsePath_Invalid(t *testing.T) {
	for _, s := range []string{"", "a..b", ".a", "a."} {
		if _, err := ParsePath(s); !errors.Is(err, domain.ErrInvalidPath) {
			t.Errorf("ParsePath(%q) err = %v, want ErrInvalidPath", s, err)
		}
	}
}

func TestDocument_ID(t *testing.T) {
	if got := New("doc-1").ID(); got != "doc-1" {
		t.Errorf("ID() = %q", got)
	}
	if got := (Document{"_id": 42}).ID(); got != "42" {
		t.Errorf("ID() = %q, want 42", got)
	}
	if got := (Document{}).ID(); got != "" {
		t.Errorf("ID() = %q, want empty", got)
	}
}

func TestDocument_GetNested(t *testing.T) {
	d := Document{
		"_id": "1",
		"a": map[string]any{
			"b": []any{
				map[string]any{"c": "first"},
				map[string]any{"c": "second"},
			},
		},
	}

	v, ok := d.Get("a.b.1.c")
	if !ok || v != "second" {
		t.Errorf("Get = %v, %v; want second", v, ok)
	}
	if _, ok := d.Get("a.b.5.c"); ok {
		t.Error("read past the end must be not found")
	}
	if _, ok := d.Get("a.x"); ok {
		t.Error("missing key must be not found")
	}
	if !d.Exists("a.b") {
		t.Error("Exists(a.b) = false")
	}
}

func TestDocument_SetAutoVivifies(t *testing.T) {
	d := New("1")
	if err := d.Set("x.y.z", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := d.Get("x.y.z")
	if !ok || v != 3 {
		t.Errorf("Get = %v, %v", v, ok)
	}
	if _, ok := d["x"].(map[string]any); !ok {
		t.Errorf("intermediate = %T, want map", d["x"])
	}
}

func TestDocument_SetClampsToLastIndex(t *testing.T) {
	d := Document{
		"chunks": []any{
			map[string]any{"t": "a"},
			map[string]any{"t": "b"},
		},
	}
	if err := d.Set("chunks.7.t", "z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := d.Get("chunks.1.t")
	if v != "z" {
		t.Errorf("last element t = %v, want z", v)
	}
	v, _ = d.Get("chunks.0.t")
	if v != "a" {
		t.Errorf("first element must be untouched, got %v", v)
	}
}

func TestDocument_SetIntoEmptySequence(t *testing.T) {
	d := Document{"s": []any{}}
	err := d.Set("s.0", 1)
	if !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestDocument_SetThroughScalar(t *testing.T) {
	d := Document{"a": "scalar"}
	if err := d.Set("a.b", 1); !errors.Is(err, domain.ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestDocument_SetKeyOnSequence(t *testing.T) {
	d := Document{"a": []any{1, 2}}
	if err := d.Set("a.b", 1); !errors.Is(err, domain.ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestDocument_SetMappingSequence(t *testing.T) {
	d := Document{"a": []map[string]any{{"k": 1}}}
	if err := d.Set("a.0.k", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := d.Get("a.0.k"); v != 2 {
		t.Errorf("a.0.k = %v, want 2", v)
	}
}

func TestDocument_CloneIsDeep(t *testing.T) {
	d := Document{
		"_id":  "1",
		"m":    map[string]any{"k": "v"},
		"s":    []any{map[string]any{"x": 1}},
		"vec_": []float64{1, 2},
	}
	c := d.Clone()
	_ = c.Set("m.k", "changed")
	_ = c.Set("s.0.x", 99)
	c["vec_"].([]float64)[0] = 42

	if v, _ := d.Get("m.k"); v != "v" {
		t.Errorf("original map mutated: %v", v)
	}
	if v, _ := d.Get("s.0.x"); v != 1 {
		t.Errorf("original sequence mutated: %v", v)
	}
	if d["vec_"].([]float64)[0] != 1 {
		t.Error("original vector mutated")
	}
}

func TestDocument_HasPayload(t *testing.T) {
	if New("1").HasPayload() {
		t.Error("id-only document has no payload")
	}
	if !(Document{"_id": "1", "a": 1}).HasPayload() {
		t.Error("document with a field has payload")
	}
}

func TestDocument_Select(t *testing.T) {
	d := Document{"_id": "1", "a": map[string]any{"b": 1}, "c": 2}
	s := d.Select([]string{"a.b"})
	if _, ok := s["c"]; ok {
		t.Error("unselected field kept")
	}
	if !s.Exists("a.b") || s.ID() != "1" {
		t.Errorf("Select = %v", s)
	}
	if len(d.Select(nil)) != 3 {
		t.Error("empty selection keeps every field")
	}
}
