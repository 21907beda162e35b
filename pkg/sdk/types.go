package workflows

import (
	"github.com/kailas-cloud/workflows/internal/domain/batch"
	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/domain/schema"
	"github.com/kailas-cloud/workflows/internal/engine"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// Document model.
type (
	Document = document.Document
	List     = document.List
	Schema   = schema.Schema
)

// Filters.
type (
	Filter    = filter.Filter
	Condition = filter.Condition
	Range     = filter.Range
)

// Dataset collaborator values.
type (
	Query         = dataset.Query
	Page          = dataset.Page
	UpdateOptions = dataset.UpdateOptions
	UpdateResult  = dataset.UpdateResult
)

// Job records.
type (
	Status       = job.Status
	Progress     = job.Progress
	FieldLineage = job.FieldLineage
	JobRecord    = job.Record
	ChunkError   = batch.ChunkError
)

// Operators.
type (
	Operator           = operator.Operator
	DenseOperator      = operator.DenseOperator
	Fields             = operator.Fields
	TransformFunc      = operator.TransformFunc
	DenseTransformFunc = operator.DenseTransformFunc
	OperatorOption     = operator.Option
)

// Engines.
type (
	Engine              = engine.Engine
	Dataset             = engine.Dataset
	Inserter            = engine.Inserter
	DestinationResolver = engine.DestinationResolver
	EngineOption        = engine.Option
)

// Job statuses.
const (
	StatusInProgress = job.StatusInProgress
	StatusComplete   = job.StatusComplete
	StatusFailed     = job.StatusFailed
)

// NewDocument creates a document with the given id.
func NewDocument(id string) Document { return document.New(id) }

// FromMaps converts plain maps into a document list.
func FromMaps(ms []map[string]any) List { return document.FromMaps(ms) }

// Diff returns the fields of updated that differ from old, plus the id.
func Diff(old, updated Document) (Document, bool) { return document.Diff(old, updated) }

// Filter constructors.
var (
	Exists    = filter.Exists
	NotExists = filter.NotExists
	Equals    = filter.Equals
	Numeric   = filter.Numeric
	Between   = filter.Between
	IDs       = filter.IDs
	And       = filter.And
	Or        = filter.Or
)
