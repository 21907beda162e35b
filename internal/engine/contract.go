package engine

import (
	"context"

	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/domain/schema"
)

// Dataset is the paginated document store an engine reads from and writes back to.
type Dataset interface {
	ID() string
	Schema(ctx context.Context) (schema.Schema, error)
	Count(ctx context.Context, filters []filter.Filter) (int, error)
	Documents(ctx context.Context, q dataset.Query) (dataset.Page, error)
	Update(ctx context.Context, docs document.List, opts dataset.UpdateOptions) (dataset.UpdateResult, error)
}

// Inserter receives fan-out output for one destination dataset.
type Inserter interface {
	Insert(ctx context.Context, docs document.List) (dataset.UpdateResult, error)
}

// DestinationResolver opens the destination dataset a dense operator named.
type DestinationResolver func(ctx context.Context, datasetID string) (Inserter, error)

// ProgressReporter receives progress after every consumed page.
type ProgressReporter interface {
	UpdateProgress(ctx context.Context, p job.Progress) error
}
