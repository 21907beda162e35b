package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// NewMultiPass creates an engine that runs each operator in its own pass over
// the dataset, in order. Every pass starts from the beginning of the dataset
// so later operators see what earlier passes pushed.
func NewMultiPass(ds Dataset, ops []operator.Operator, opts ...Option) (*Engine, error) {
	anyOps := make([]any, len(ops))
	for i, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("%s engine: operator %d is nil: %w", VariantMultiPass, i, domain.ErrInvalidConfig)
		}
		anyOps[i] = op
	}
	e, err := newEngine(VariantMultiPass, ds, anyOps, runMultiPass(ops), defaultConfig(), opts)
	if err != nil {
		return nil, err
	}
	e.nPasses = len(ops)
	return e, nil
}

func runMultiPass(ops []operator.Operator) runner {
	return func(ctx context.Context, e *Engine) error {
		for i, op := range ops {
			e.startPass(i)
			filters := e.passFilters(op)
			e.logger.Info("Pass started",
				zap.Int("pass", i+1),
				zap.Int("passes", len(ops)),
				zap.String("operator", operator.NameOf(op)),
			)

			for page, err := range e.pages(ctx, filters) {
				if err != nil {
					return fmt.Errorf("pass %d (%s): %w", i+1, operator.NameOf(op), err)
				}
				if err := e.push(ctx, e.transform(ctx, op, page)); err != nil {
					return fmt.Errorf("pass %d (%s): %w", i+1, operator.NameOf(op), err)
				}
			}
		}
		return nil
	}
}

// passFilters narrows the base filters with this operator's own refresh clause.
func (e *Engine) passFilters(op operator.Operator) []filter.Filter {
	filters := e.baseFilters()
	if e.cfg.refresh {
		return filters
	}
	fields := operator.FieldsOf(op)
	if f, ok := filter.Refresh(fields.Input, fields.Output); ok {
		filters = append(filters, f)
	}
	return filters
}
