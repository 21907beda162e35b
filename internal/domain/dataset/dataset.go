package dataset

import (
	"slices"

	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
)

// Query is one cursor-paginated pull request.
type Query struct {
	PageSize     int
	Filters      []filter.Filter
	SelectFields []string
	// AfterID is the opaque cursor returned by the previous page; empty starts from the beginning.
	AfterID      string
	WorkerNumber int
	// IncludeVector returns every vector field. Without it only vectors named
	// in SelectFields are returned.
	IncludeVector bool
}

// Project applies the field selection and vector policy of q to a stored document.
func (q Query) Project(d document.Document) document.Document {
	out := d.Select(q.SelectFields)
	if q.IncludeVector {
		return out
	}
	for k := range out {
		if document.IsVectorField(k) && !slices.Contains(q.SelectFields, k) {
			delete(out, k)
		}
	}
	return out
}

// Page is one pulled page. An empty Documents slice ends iteration.
type Page struct {
	Documents document.List
	AfterID   string
	Count     int
}

// UpdateOptions controls a push.
type UpdateOptions struct {
	IngestInBackground bool
	UpdateSchema       bool
}

// UpdateResult reports a push. FailedDocuments lists ids the store rejected.
type UpdateResult struct {
	Inserted        int      `json:"inserted"`
	FailedDocuments []string `json:"failed_documents"`
}

// Add folds another result into r.
func (r *UpdateResult) Add(other UpdateResult) {
	r.Inserted += other.Inserted
	r.FailedDocuments = append(r.FailedDocuments, other.FailedDocuments...)
}
