package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/batch"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/metrics"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// Variant names, also used as the metrics label.
const (
	VariantStable      = "stable"
	VariantSmallBatch  = "small_batch"
	VariantMultiPass   = "multi_pass"
	VariantDenseOutput = "dense_output"
	VariantInMemory    = "in_memory"
)

type runner func(ctx context.Context, e *Engine) error

// Engine pulls documents page by page, hands mini-batches to operators and
// pushes the diffs back. Variants differ only in how much they buffer before
// transforming and before pushing.
//
// An Engine owns its cursor and counters. It is single-owner and single-use:
// Apply may be called once.
type Engine struct {
	variant string
	ds      Dataset
	ops     []any
	cfg     config
	logger  *zap.Logger
	run     runner

	initialized bool
	applied     bool

	filters  []filter.Filter
	size     int
	pullSize int
	afterID  string

	nPasses   int
	passIndex int
	processed int

	successful      int
	pushes          int
	pushed          int
	chunkErrors     []batch.ChunkError
	failedDocuments []string
	output          document.List
}

func newEngine(variant string, ds Dataset, ops []any, run runner, base config, opts []Option) (*Engine, error) {
	if ds == nil {
		return nil, fmt.Errorf("%s engine: dataset is required: %w", variant, domain.ErrInvalidConfig)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%s engine: at least one operator is required: %w", variant, domain.ErrInvalidConfig)
	}
	for i, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("%s engine: operator %d is nil: %w", variant, i, domain.ErrInvalidConfig)
		}
	}

	cfg := base
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.totalWorkers > 1 && (cfg.workerNumber < 0 || cfg.workerNumber >= cfg.totalWorkers) {
		return nil, fmt.Errorf("%s engine: worker %d of %d: %w",
			variant, cfg.workerNumber, cfg.totalWorkers, domain.ErrInvalidConfig)
	}
	for _, f := range cfg.filters {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("%s engine: %w: %w", variant, domain.ErrInvalidConfig, err)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	return &Engine{
		variant: variant,
		ds:      ds,
		ops:     ops,
		cfg:     cfg,
		logger:  cfg.logger.With(zap.String("engine", variant), zap.String("dataset", ds.ID())),
		run:     run,
		nPasses: 1,
	}, nil
}

// Apply runs the engine to completion. Per-mini-batch transform failures are
// recorded and do not fail the run; setup errors, exhausted pull retries and
// push errors do. Writes made before a failure stay written.
func (e *Engine) Apply(ctx context.Context) error {
	if e.applied {
		return fmt.Errorf("%s engine on %s: %w", e.variant, e.ds.ID(), domain.ErrEngineConsumed)
	}
	e.applied = true
	start := time.Now()

	if err := e.init(ctx); err != nil {
		e.logger.Error("Engine init failed", zap.Error(err))
		return err
	}
	if err := operator.Setup(ctx, e.ops...); err != nil {
		e.logger.Error("Operator setup failed", zap.Error(err))
		return err
	}

	err := e.run(ctx, e)

	if terr := operator.Teardown(ctx, e.ops...); terr != nil {
		if err == nil {
			err = terr
		} else {
			e.logger.Warn("Operator teardown failed after run error", zap.Error(terr))
		}
	}

	ratio := e.SuccessRatio()
	metrics.EngineSuccessRatio.WithLabelValues(e.variant).Set(ratio)

	if err != nil {
		e.logger.Error("Engine run aborted",
			zap.Int("successful", e.successful),
			zap.Int("pushed", e.pushed),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	e.logger.Info("Engine run finished",
		zap.Int("size", e.size),
		zap.Int("successful", e.successful),
		zap.Int("pushed", e.pushed),
		zap.Int("pushes", e.pushes),
		zap.Int("failed_chunks", len(e.chunkErrors)),
		zap.Float64("success_ratio", ratio),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// init validates select fields, builds the active filter set, sizes the run
// and derives the pull chunk size.
func (e *Engine) init(ctx context.Context) error {
	if e.initialized {
		return nil
	}

	if len(e.cfg.selectFields) > 0 {
		s, err := e.ds.Schema(ctx)
		if err != nil {
			return fmt.Errorf("get schema of %s: %w", e.ds.ID(), err)
		}
		if missing := s.Missing(e.cfg.selectFields); len(missing) > 0 {
			if e.cfg.checkMissingFields {
				return fmt.Errorf("select fields %v not in %s: %w", missing, e.ds.ID(), domain.ErrMissingFields)
			}
			e.logger.Warn("Select fields missing from schema", zap.Strings("fields", missing))
		}
	}

	e.filters = e.baseFilters()
	if !e.cfg.refresh && e.variant != VariantDenseOutput {
		if f, ok := refreshFilter(e.ops); ok {
			e.filters = append(e.filters, f)
		}
	}

	size, err := e.ds.Count(ctx, e.filters)
	if err != nil {
		return fmt.Errorf("count %s: %w", e.ds.ID(), err)
	}
	if e.cfg.limit > 0 && size > e.cfg.limit {
		size = e.cfg.limit
	}
	e.size = size

	e.pullSize = min(e.cfg.pullChunkSize, e.cfg.documentLimit)
	if e.cfg.limit > 0 {
		e.pullSize = min(e.pullSize, e.cfg.limit)
	}

	e.initialized = true
	e.logger.Info("Engine initialized",
		zap.Int("size", e.size),
		zap.Int("pull_chunk_size", e.pullSize),
		zap.Int("transform_chunk_size", e.cfg.transformChunkSize),
		zap.Int("filters", len(e.filters)),
		zap.Bool("refresh", e.cfg.refresh),
	)
	return nil
}

// baseFilters returns the user filters plus the shard filter, without any refresh clause.
func (e *Engine) baseFilters() []filter.Filter {
	out := append([]filter.Filter(nil), e.cfg.filters...)
	if f, ok := filter.Shard(e.cfg.workerNumber, e.cfg.totalWorkers); ok {
		out = append(out, f)
	}
	return out
}

// refreshFilter ORs the per-operator "input present, some output missing"
// clauses. An operator without outputs can never be skipped, so then no
// refresh filter applies.
func refreshFilter(ops []any) (filter.Filter, bool) {
	clauses := make([]filter.Filter, 0, len(ops))
	for _, op := range ops {
		fields := operator.FieldsOf(op)
		f, ok := filter.Refresh(fields.Input, fields.Output)
		if !ok {
			return filter.Filter{}, false
		}
		clauses = append(clauses, f)
	}
	if len(clauses) == 1 {
		return clauses[0], true
	}
	return filter.Or(clauses...), true
}

// Variant returns the engine variant name.
func (e *Engine) Variant() string { return e.variant }

// DatasetID returns the source dataset identifier.
func (e *Engine) DatasetID() string { return e.ds.ID() }

// Size returns the number of documents the run covers. Known after init.
func (e *Engine) Size() int { return e.size }

// Successful returns the number of document×operator units transformed without error.
func (e *Engine) Successful() int { return e.successful }

// Pushes returns the number of push calls made.
func (e *Engine) Pushes() int { return e.pushes }

// SuccessRatio is successful units over size×operators, clamped to [0, 1].
// An empty run counts as fully successful.
func (e *Engine) SuccessRatio() float64 {
	if e.size == 0 {
		return 1.0
	}
	r := float64(e.successful) / float64(e.size*len(e.ops))
	return max(0, min(1, r))
}

// Errors returns the failed mini-batches recorded during the run.
func (e *Engine) Errors() []batch.ChunkError { return e.chunkErrors }

// FailedDocuments returns ids the dataset rejected on push.
func (e *Engine) FailedDocuments() []string { return e.failedDocuments }

// Output returns documents kept in memory when running with WithOutputToStatus.
func (e *Engine) Output() document.List { return e.output }

// Lineage returns the input to output field links of every operator.
func (e *Engine) Lineage() []job.FieldLineage {
	out := make([]job.FieldLineage, 0, len(e.ops))
	for _, op := range e.ops {
		f := operator.FieldsOf(op)
		if len(f.Output) == 0 {
			continue
		}
		out = append(out, job.FieldLineage{Dataset: e.ds.ID(), Inputs: f.Input, Outputs: f.Output})
	}
	return out
}

// OutputFields returns every field the operators write.
func (e *Engine) OutputFields() []string {
	var out []string
	for _, op := range e.ops {
		out = append(out, operator.FieldsOf(op).Output...)
	}
	return out
}
