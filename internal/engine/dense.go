package engine

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// NewDenseOutput creates a fan-out engine. Each mini-batch produces documents
// for several destination datasets, inserted once per page per destination.
// Operator outputs name destinations rather than fields, so refresh does not
// narrow the source.
func NewDenseOutput(ds Dataset, op operator.DenseOperator, opts ...Option) (*Engine, error) {
	e, err := newEngine(VariantDenseOutput, ds, operators(op), runDense(op), defaultConfig(), opts)
	if err != nil {
		return nil, err
	}
	if e.cfg.destinations == nil && !e.cfg.outputToStatus {
		return nil, fmt.Errorf("%s engine: destination resolver is required: %w", VariantDenseOutput, domain.ErrInvalidConfig)
	}
	return e, nil
}

func runDense(op operator.DenseOperator) runner {
	return func(ctx context.Context, e *Engine) error {
		for page, err := range e.pages(ctx, e.filters) {
			if err != nil {
				return err
			}
			if err := e.insertAll(ctx, e.transformDense(ctx, op, page)); err != nil {
				return err
			}
		}
		return nil
	}
}
