package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/schema"
)

// Dataset is an in-process dataset ordered by document id. Safe for concurrent use.
type Dataset struct {
	id string

	mu     sync.RWMutex
	docs   map[string]document.Document
	ids    []string
	schema schema.Schema
}

// NewDataset creates a dataset seeded with docs. Seed documents without an id get one.
func NewDataset(id string, docs document.List) *Dataset {
	d := &Dataset{id: id, docs: map[string]document.Document{}, schema: schema.Schema{}}
	d.put(withIDs(docs))
	d.schema = d.schema.Merge(schema.Infer(docs))
	return d
}

// ID returns the dataset id.
func (d *Dataset) ID() string { return d.id }

// Schema returns a copy of the field schema.
func (d *Dataset) Schema(context.Context) (schema.Schema, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.schema), nil
}

// Count returns the number of documents matching filters.
func (d *Dataset) Count(_ context.Context, filters []filter.Filter) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, id := range d.ids {
		if filter.Match(d.docs[id], filters) {
			n++
		}
	}
	return n, nil
}

// Documents returns the next page after q.AfterID in id order.
func (d *Dataset) Documents(_ context.Context, q dataset.Query) (dataset.Page, error) {
	if q.PageSize <= 0 {
		return dataset.Page{}, fmt.Errorf("page size %d: %w", q.PageSize, domain.ErrInvalidConfig)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	start := 0
	if q.AfterID != "" {
		i, found := slices.BinarySearch(d.ids, q.AfterID)
		if found {
			i++
		}
		start = i
	}

	var out document.List
	for _, id := range d.ids[start:] {
		doc := d.docs[id]
		if !filter.Match(doc, q.Filters) {
			continue
		}
		out = append(out, q.Project(doc))
		if len(out) == q.PageSize {
			break
		}
	}

	page := dataset.Page{Documents: out, Count: len(out)}
	if len(out) > 0 {
		page.AfterID = out[len(out)-1].ID()
	}
	return page, nil
}

// Update merges top-level fields into stored documents, creating missing ones.
func (d *Dataset) Update(_ context.Context, docs document.List, opts dataset.UpdateOptions) (dataset.UpdateResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res dataset.UpdateResult
	var merged document.List
	for _, doc := range docs {
		id := doc.ID()
		if id == "" {
			res.FailedDocuments = append(res.FailedDocuments, "")
			continue
		}
		cur, ok := d.docs[id]
		if !ok {
			cur = document.Document{}
		} else {
			cur = cur.Clone()
		}
		maps.Copy(cur, doc.Clone())
		merged = append(merged, cur)
	}
	d.put(merged)
	res.Inserted = len(merged)
	if opts.UpdateSchema {
		d.schema = d.schema.Merge(schema.Infer(merged))
	}
	return res, nil
}

// Insert overwrites documents and updates the schema.
func (d *Dataset) Insert(_ context.Context, docs document.List) (dataset.UpdateResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := withIDs(docs)
	d.put(list)
	d.schema = d.schema.Merge(schema.Infer(list))
	return dataset.UpdateResult{Inserted: len(list)}, nil
}

// Snapshot returns a copy of every document in id order.
func (d *Dataset) Snapshot() document.List {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(document.List, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.docs[id].Clone())
	}
	return out
}

// put stores clones of docs; callers hold the write lock or own d exclusively.
func (d *Dataset) put(docs document.List) {
	for _, doc := range docs {
		id := doc.ID()
		if _, ok := d.docs[id]; !ok {
			i, _ := slices.BinarySearch(d.ids, id)
			d.ids = slices.Insert(d.ids, i, id)
		}
		d.docs[id] = doc.Clone()
	}
}

func withIDs(docs document.List) document.List {
	out := make(document.List, len(docs))
	for i, doc := range docs {
		if doc.ID() == "" {
			doc = doc.Clone()
			doc[document.IDField] = uuid.New().String()
		}
		out[i] = doc
	}
	return out
}
