package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/metrics"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// NewInMemory creates an engine for operators that need every document
// before producing any output, clustering being the usual case. The whole
// filtered dataset is pulled, transformed in one call, then pushed in chunks.
// Vectors are pulled unless WithIncludeVector(false) is given.
func NewInMemory(ds Dataset, op operator.Operator, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	cfg.includeVector = true
	return newEngine(VariantInMemory, ds, operators(op), runInMemory(op), cfg, opts)
}

// NewCluster is NewInMemory under the name clustering workflows use.
func NewCluster(ds Dataset, op operator.Operator, opts ...Option) (*Engine, error) {
	return NewInMemory(ds, op, opts...)
}

func runInMemory(op operator.Operator) runner {
	return func(ctx context.Context, e *Engine) error {
		var all document.List
		for page, err := range e.pages(ctx, e.filters) {
			if err != nil {
				return err
			}
			all = append(all, page...)
		}
		e.logger.Info("Dataset loaded into memory", zap.Int("documents", len(all)))
		if len(all) == 0 {
			return nil
		}

		out, err := operator.Apply(ctx, op, all)
		if err != nil {
			e.recordFailure(op, all, err)
			return nil
		}
		e.successful += len(all)
		metrics.EngineDocumentsTransformedTotal.WithLabelValues(e.variant, "ok").Add(float64(len(all)))
		return e.pushChunked(ctx, out)
	}
}
