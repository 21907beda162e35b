package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/domain/schema"
	"github.com/kailas-cloud/workflows/internal/operator"
)

var errConnection = errors.New("connection reset")

type updateCall struct {
	docs document.List
	opts dataset.UpdateOptions
}

// fakeDataset is an in-memory Dataset with id-ordered cursor pagination.
type fakeDataset struct {
	id     string
	docs   map[string]document.Document
	schema schema.Schema

	pullErrs      []error
	malformedOnce bool
	failIDs       map[string]bool
	updateErr     error

	pullCalls    int
	queries      []dataset.Query
	countFilters [][]filter.Filter
	updates      []updateCall
}

func newFakeDataset(n int) *fakeDataset {
	ds := &fakeDataset{id: "articles", docs: map[string]document.Document{}}
	for i := range n {
		id := fmt.Sprintf("doc-%03d", i)
		ds.docs[id] = document.Document{"_id": id, "n": i, "title": fmt.Sprintf("title %d", i)}
	}
	return ds
}

func (f *fakeDataset) ID() string { return f.id }

func (f *fakeDataset) Schema(context.Context) (schema.Schema, error) {
	if f.schema != nil {
		return f.schema, nil
	}
	list := make(document.List, 0, len(f.docs))
	for _, d := range f.docs {
		list = append(list, d)
	}
	return schema.Infer(list), nil
}

func (f *fakeDataset) Count(_ context.Context, filters []filter.Filter) (int, error) {
	f.countFilters = append(f.countFilters, filters)
	n := 0
	for _, d := range f.docs {
		if filter.Match(d, filters) {
			n++
		}
	}
	return n, nil
}

func (f *fakeDataset) Documents(_ context.Context, q dataset.Query) (dataset.Page, error) {
	f.pullCalls++
	f.queries = append(f.queries, q)
	if len(f.pullErrs) > 0 {
		err := f.pullErrs[0]
		f.pullErrs = f.pullErrs[1:]
		if err != nil {
			return dataset.Page{}, err
		}
	}

	ids := f.sortedIDs()
	page := dataset.Page{AfterID: q.AfterID}
	for _, id := range ids {
		if len(page.Documents) >= q.PageSize {
			break
		}
		if id <= q.AfterID || !filter.Match(f.docs[id], q.Filters) {
			continue
		}
		page.Documents = append(page.Documents, f.docs[id].Select(q.SelectFields))
		page.AfterID = id
	}
	page.Count = len(page.Documents)

	if f.malformedOnce && len(page.Documents) > 0 {
		f.malformedOnce = false
		page.AfterID = ""
	}
	return page, nil
}

func (f *fakeDataset) Update(_ context.Context, docs document.List, opts dataset.UpdateOptions) (dataset.UpdateResult, error) {
	f.updates = append(f.updates, updateCall{docs: docs.Clone(), opts: opts})
	if f.updateErr != nil {
		return dataset.UpdateResult{}, f.updateErr
	}
	var res dataset.UpdateResult
	for _, d := range docs {
		if f.failIDs[d.ID()] {
			res.FailedDocuments = append(res.FailedDocuments, d.ID())
			continue
		}
		stored, ok := f.docs[d.ID()]
		if !ok {
			stored = document.New(d.ID())
			f.docs[d.ID()] = stored
		}
		for k, v := range d {
			stored[k] = v
		}
		res.Inserted++
	}
	return res, nil
}

func (f *fakeDataset) sortedIDs() []string {
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeDataset) pushedIDs() []string {
	var ids []string
	for _, u := range f.updates {
		ids = append(ids, u.docs.IDs()...)
	}
	return ids
}

// fakeDestination records fan-out inserts.
type fakeDestination struct {
	inserts []document.List
}

func (d *fakeDestination) Insert(_ context.Context, docs document.List) (dataset.UpdateResult, error) {
	d.inserts = append(d.inserts, docs.Clone())
	return dataset.UpdateResult{Inserted: len(docs)}, nil
}

type mockReporter struct {
	mu       sync.Mutex
	progress []job.Progress
	err      error
}

func (m *mockReporter) UpdateProgress(_ context.Context, p job.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, p)
	return m.err
}

func incrementOp() *operator.Func {
	return operator.NewFunc("increment", func(_ context.Context, docs document.List) (document.List, error) {
		for _, d := range docs {
			n, _ := document.Number(d["n"])
			d["n"] = n + 1
		}
		return docs, nil
	}, operator.WithFields([]string{"n"}, []string{"n"}))
}

func setOp(name, input, output string, fn func(document.Document) any) *operator.Func {
	return operator.NewFunc(name, func(_ context.Context, docs document.List) (document.List, error) {
		for _, d := range docs {
			d[output] = fn(d)
		}
		return docs, nil
	}, operator.WithFields([]string{input}, []string{output}))
}

func noRetryDelay() Option { return WithRetry(DefaultMaxRetries, 0) }
