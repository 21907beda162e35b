package workflows

import (
	"github.com/kailas-cloud/workflows/internal/engine"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// NewStable creates the default engine: pull a page, transform it in
// mini-batches, push the diff.
func NewStable(ds Dataset, op Operator, opts ...EngineOption) (*Engine, error) {
	return engine.NewStable(ds, op, opts...)
}

// NewSmallBatch creates an engine for small pull chunks that accumulates
// pages before transforming.
func NewSmallBatch(ds Dataset, op Operator, opts ...EngineOption) (*Engine, error) {
	return engine.NewSmallBatch(ds, op, opts...)
}

// NewMultiPass runs every operator over the whole dataset in turn.
func NewMultiPass(ds Dataset, ops []Operator, opts ...EngineOption) (*Engine, error) {
	return engine.NewMultiPass(ds, ops, opts...)
}

// NewDenseOutput creates a fan-out engine writing to destination datasets.
func NewDenseOutput(ds Dataset, op DenseOperator, opts ...EngineOption) (*Engine, error) {
	return engine.NewDenseOutput(ds, op, opts...)
}

// NewInMemory loads every matching document before a single transform.
func NewInMemory(ds Dataset, op Operator, opts ...EngineOption) (*Engine, error) {
	return engine.NewInMemory(ds, op, opts...)
}

// NewCluster is NewInMemory for operators that need the whole population,
// such as clustering.
func NewCluster(ds Dataset, op Operator, opts ...EngineOption) (*Engine, error) {
	return engine.NewCluster(ds, op, opts...)
}

// Engine options.
var (
	WithPullChunkSize      = engine.WithPullChunkSize
	WithTransformChunkSize = engine.WithTransformChunkSize
	WithTransformThreshold = engine.WithTransformThreshold
	WithDocumentLimit      = engine.WithDocumentLimit
	WithLimit              = engine.WithLimit
	WithFilters            = engine.WithFilters
	WithSelectFields       = engine.WithSelectFields
	WithIncludeVector      = engine.WithIncludeVector
	WithRefresh            = engine.WithRefresh
	WithCheckMissingFields = engine.WithCheckMissingFields
	WithWorker             = engine.WithWorker
	WithRetry              = engine.WithRetry
	WithIngestInBackground = engine.WithIngestInBackground
	WithOutputToStatus     = engine.WithOutputToStatus
	WithDestinations       = engine.WithDestinations
	WithEngineLogger       = engine.WithLogger
)

// NewFunc wraps a plain function as an operator.
func NewFunc(name string, fn TransformFunc, opts ...OperatorOption) Operator {
	return operator.NewFunc(name, fn, opts...)
}

// NewDenseFunc wraps a fan-out function as a dense operator. Its outputs
// name the destination datasets.
func NewDenseFunc(name string, fn DenseTransformFunc, opts ...OperatorOption) DenseOperator {
	return operator.NewDenseFunc(name, fn, opts...)
}

// Operator options.
var (
	WithFields         = operator.WithFields
	WithoutPostprocess = operator.WithoutPostprocess
	WithSetup          = operator.WithSetup
	WithTeardown       = operator.WithTeardown
)
