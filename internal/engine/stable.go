package engine

import (
	"context"

	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// NewStable creates the default single-operator engine: one page pulled,
// transformed in mini-batches, and pushed in one call.
func NewStable(ds Dataset, op operator.Operator, opts ...Option) (*Engine, error) {
	return newEngine(VariantStable, ds, operators(op), runStable(op), defaultConfig(), opts)
}

func runStable(op operator.Operator) runner {
	return func(ctx context.Context, e *Engine) error {
		for page, err := range e.pages(ctx, e.filters) {
			if err != nil {
				return err
			}
			if err := e.push(ctx, e.transform(ctx, op, page)); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewSmallBatch creates an engine that pulls small pages and accumulates them
// until the transform threshold before transforming and pushing once.
// Suited to backends where pulls are cheap and pushes are expensive.
func NewSmallBatch(ds Dataset, op operator.Operator, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	cfg.pullChunkSize = DefaultSmallBatchPullChunkSize
	return newEngine(VariantSmallBatch, ds, operators(op), runSmallBatch(op), cfg, opts)
}

func runSmallBatch(op operator.Operator) runner {
	return func(ctx context.Context, e *Engine) error {
		var buf document.List
		flush := func() error {
			if len(buf) == 0 {
				return nil
			}
			out := e.transform(ctx, op, buf)
			buf = nil
			return e.push(ctx, out)
		}

		for page, err := range e.pages(ctx, e.filters) {
			if err != nil {
				return err
			}
			buf = append(buf, page...)
			if len(buf) >= e.cfg.transformThreshold {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	}
}

func operators(op any) []any {
	if op == nil {
		return nil
	}
	return []any{op}
}
