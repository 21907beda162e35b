package document

import (
	"fmt"

	"github.com/kailas-cloud/workflows/internal/domain"
)

// List is an ordered batch of documents; order is pull order.
type List []Document

// FromMaps wraps plain maps as a List without copying them.
func FromMaps(ms []map[string]any) List {
	out := make(List, len(ms))
	for i, m := range ms {
		out[i] = Document(m)
	}
	return out
}

// IDs returns the identifier of every document.
func (l List) IDs() []string {
	ids := make([]string, len(l))
	for i, d := range l {
		ids[i] = d.ID()
	}
	return ids
}

// Column reads path from every document; missing values are nil.
func (l List) Column(path string) []any {
	out := make([]any, len(l))
	p, err := ParsePath(path)
	if err != nil {
		return out
	}
	for i, d := range l {
		if v, ok := d.GetPath(p); ok {
			out[i] = v
		}
	}
	return out
}

// SetColumn broadcasts one value to path on every document.
func (l List) SetColumn(path string, value any) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	for _, d := range l {
		if err := d.SetPath(p, cloneValue(value)); err != nil {
			return fmt.Errorf("document %s: %w", d.ID(), err)
		}
	}
	return nil
}

// SetColumnValues zips values onto path, one per document.
func (l List) SetColumnValues(path string, values []any) error {
	if len(values) != len(l) {
		return fmt.Errorf("%d values for %d documents: %w", len(values), len(l), domain.ErrLengthMismatch)
	}
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	for i, d := range l {
		if err := d.SetPath(p, values[i]); err != nil {
			return fmt.Errorf("document %s: %w", d.ID(), err)
		}
	}
	return nil
}

// Clone deep-copies every document.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, d := range l {
		out[i] = d.Clone()
	}
	return out
}

// Chunks splits the list into consecutive slices of at most size documents.
// A non-positive size yields the whole list as one chunk. Chunks share the
// backing array but are capacity-capped, so appending to one never overwrites another.
func (l List) Chunks(size int) []List {
	if len(l) == 0 {
		return nil
	}
	if size <= 0 || size >= len(l) {
		return []List{l[:len(l):len(l)]}
	}
	out := make([]List, 0, (len(l)+size-1)/size)
	for start := 0; start < len(l); start += size {
		end := min(start+size, len(l))
		out = append(out, l[start:end:end])
	}
	return out
}

// WithPayload drops documents that carry nothing but an identifier.
func (l List) WithPayload() List {
	out := make(List, 0, len(l))
	for _, d := range l {
		if d.HasPayload() {
			out = append(out, d)
		}
	}
	return out
}
