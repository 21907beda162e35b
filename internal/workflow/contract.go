package workflow

import (
	"context"

	"github.com/kailas-cloud/workflows/internal/domain/batch"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/job"
)

// Engine is the run a workflow wraps.
type Engine interface {
	Apply(ctx context.Context) error
	SuccessRatio() float64
	Size() int
	Errors() []batch.ChunkError
	Output() document.List
	Lineage() []job.FieldLineage
	DatasetID() string
	OutputFields() []string
}

// Reporter is the remote job status sink.
type Reporter interface {
	SetStatus(ctx context.Context, jobID string, u job.StatusUpdate) error
	RegisterLineage(ctx context.Context, jobID string, lineage []job.FieldLineage) error
}

// Counter counts documents under filters. The coverage poller uses it.
type Counter interface {
	Count(ctx context.Context, filters []filter.Filter) (int, error)
}
