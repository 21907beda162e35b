package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/workflows/internal/domain"
)

// Segment is one component of a dotted path.
// Every segment is a mapping key; all-digit segments also carry a sequence index,
// which is used when the container at that depth is a sequence.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a parsed dotted path such as "metadata.chunks.0.text".
type Path []Segment

// ParsePath splits a dotted path into tagged segments.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty path: %w", domain.ErrInvalidPath)
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("empty segment %d in %q: %w", i, s, domain.ErrInvalidPath)
		}
		seg := Segment{Key: part}
		if isDigits(part) {
			n, err := strconv.Atoi(part)
			if err == nil {
				seg.Index = n
				seg.IsIndex = true
			}
		}
		p[i] = seg
	}
	return p, nil
}

// MustParsePath is ParsePath for constant paths; it panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String joins the segments back into dotted form.
func (p Path) String() string {
	keys := make([]string, len(p))
	for i, seg := range p {
		keys[i] = seg.Key
	}
	return strings.Join(keys, ".")
}

// Root returns the top-level field name of the path.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0].Key
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// lookup walks p through nested mappings and sequences.
func lookup(v any, p Path) (any, bool) {
	cur := v
	for _, seg := range p {
		if m, ok := asMap(cur); ok {
			next, found := m[seg.Key]
			if !found {
				return nil, false
			}
			cur = next
			continue
		}
		seq, ok := asSlice(cur)
		if !ok || !seg.IsIndex || seg.Index >= len(seq) {
			return nil, false
		}
		cur = seq[seg.Index]
	}
	return cur, true
}

// assign writes value at p inside container, creating missing mappings on the way.
// Indexes past the end of a sequence are clamped to its last element.
func assign(container any, p Path, value any) error {
	seg := p[0]
	last := len(p) == 1

	switch c := container.(type) {
	case Document:
		return assign(map[string]any(c), p, value)
	case map[string]any:
		if last {
			c[seg.Key] = value
			return nil
		}
		next, ok := c[seg.Key]
		if !ok || next == nil {
			child := map[string]any{}
			c[seg.Key] = child
			next = child
		}
		return assign(next, p[1:], value)
	case []any:
		i, err := clampIndex(seg, len(c))
		if err != nil {
			return err
		}
		if last {
			c[i] = value
			return nil
		}
		if c[i] == nil {
			c[i] = map[string]any{}
		}
		return assign(c[i], p[1:], value)
	case []map[string]any:
		i, err := clampIndex(seg, len(c))
		if err != nil {
			return err
		}
		if last {
			m, ok := asMap(value)
			if !ok {
				return fmt.Errorf("non-mapping value into mapping sequence at %q: %w", seg.Key, domain.ErrInvalidPath)
			}
			c[i] = m
			return nil
		}
		if c[i] == nil {
			c[i] = map[string]any{}
		}
		return assign(c[i], p[1:], value)
	case []Document:
		i, err := clampIndex(seg, len(c))
		if err != nil {
			return err
		}
		if last {
			m, ok := asMap(value)
			if !ok {
				return fmt.Errorf("non-mapping value into document sequence at %q: %w", seg.Key, domain.ErrInvalidPath)
			}
			c[i] = Document(m)
			return nil
		}
		if c[i] == nil {
			c[i] = Document{}
		}
		return assign(c[i], p[1:], value)
	default:
		return fmt.Errorf("cannot descend into %T at %q: %w", container, seg.Key, domain.ErrInvalidPath)
	}
}

// clampIndex resolves a sequence position. Positions past the end map to the last element.
func clampIndex(seg Segment, n int) (int, error) {
	if !seg.IsIndex {
		return 0, fmt.Errorf("key %q used on a sequence: %w", seg.Key, domain.ErrInvalidPath)
	}
	if n == 0 {
		return 0, fmt.Errorf("write at %d into empty sequence: %w", seg.Index, domain.ErrIndexOutOfRange)
	}
	if seg.Index >= n {
		return n - 1, nil
	}
	return seg.Index, nil
}
