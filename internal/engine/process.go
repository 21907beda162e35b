package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain/batch"
	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/metrics"
	"github.com/kailas-cloud/workflows/internal/operator"
)

// transform hands docs to op in mini-batches. A failing mini-batch is
// recorded and left out of the result; the others carry on.
func (e *Engine) transform(ctx context.Context, op operator.Operator, docs document.List) document.List {
	out := make(document.List, 0, len(docs))
	for _, chunk := range docs.Chunks(e.cfg.transformChunkSize) {
		res, err := operator.Apply(ctx, op, chunk)
		if err != nil {
			e.recordFailure(op, chunk, err)
			continue
		}
		e.successful += len(chunk)
		metrics.EngineDocumentsTransformedTotal.WithLabelValues(e.variant, "ok").Add(float64(len(chunk)))
		out = append(out, res...)
	}
	return out
}

// transformDense is transform for fan-out operators; results are grouped by destination.
func (e *Engine) transformDense(ctx context.Context, op operator.DenseOperator, docs document.List) map[string]document.List {
	out := map[string]document.List{}
	for _, chunk := range docs.Chunks(e.cfg.transformChunkSize) {
		res, err := operator.ApplyDense(ctx, op, chunk)
		if err != nil {
			e.recordFailure(op, chunk, err)
			continue
		}
		e.successful += len(chunk)
		metrics.EngineDocumentsTransformedTotal.WithLabelValues(e.variant, "ok").Add(float64(len(chunk)))
		for dest, list := range res {
			out[dest] = append(out[dest], list...)
		}
	}
	return out
}

func (e *Engine) recordFailure(op any, chunk document.List, err error) {
	ce := batch.NewChunkError(operator.NameOf(op), chunk.IDs(), err)
	e.chunkErrors = append(e.chunkErrors, ce)
	metrics.EngineDocumentsTransformedTotal.WithLabelValues(e.variant, "error").Add(float64(len(chunk)))
	e.logger.Warn("Mini-batch transform failed",
		zap.String("operator", ce.Step()),
		zap.Strings("ids", ce.IDs()),
		zap.Error(err),
	)
}

// push writes docs back to the source dataset. Only the first
// MaxSchemaUpdateLimiter pushes of a run ask for a schema update.
func (e *Engine) push(ctx context.Context, docs document.List) error {
	if len(docs) == 0 {
		return nil
	}
	if e.cfg.outputToStatus {
		e.output = append(e.output, docs...)
		return nil
	}

	updateSchema := e.pushes < MaxSchemaUpdateLimiter
	e.pushes++
	metrics.EnginePushesTotal.WithLabelValues(e.variant, strconv.FormatBool(updateSchema)).Inc()

	start := time.Now()
	res, err := e.ds.Update(ctx, docs, dataset.UpdateOptions{
		IngestInBackground: e.cfg.ingestInBackground,
		UpdateSchema:       updateSchema,
	})
	metrics.EnginePushDuration.WithLabelValues(e.variant).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("push %d documents to %s: %w", len(docs), e.ds.ID(), err)
	}
	e.recordPushed(e.ds.ID(), len(docs), res)
	return nil
}

// pushChunked pushes docs in slices of the pull chunk size.
func (e *Engine) pushChunked(ctx context.Context, docs document.List) error {
	for _, chunk := range docs.Chunks(e.pullSize) {
		if err := e.push(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// insertAll writes fan-out output to each destination, in name order.
func (e *Engine) insertAll(ctx context.Context, byDest map[string]document.List) error {
	dests := make([]string, 0, len(byDest))
	for d := range byDest {
		dests = append(dests, d)
	}
	sort.Strings(dests)

	for _, dest := range dests {
		docs := byDest[dest]
		if len(docs) == 0 {
			continue
		}
		if e.cfg.outputToStatus {
			e.output = append(e.output, docs...)
			continue
		}
		target, err := e.cfg.destinations(ctx, dest)
		if err != nil {
			return fmt.Errorf("open destination %s: %w", dest, err)
		}
		e.pushes++
		start := time.Now()
		res, err := target.Insert(ctx, docs)
		metrics.EnginePushDuration.WithLabelValues(e.variant).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("insert %d documents into %s: %w", len(docs), dest, err)
		}
		e.recordPushed(dest, len(docs), res)
	}
	return nil
}

// recordPushed books a push result. Rejected documents no longer count as successful.
func (e *Engine) recordPushed(target string, n int, res dataset.UpdateResult) {
	failed := len(res.FailedDocuments)
	e.pushed += n - failed
	metrics.EngineDocumentsPushedTotal.WithLabelValues(e.variant).Add(float64(n - failed))
	if failed == 0 {
		return
	}
	e.failedDocuments = append(e.failedDocuments, res.FailedDocuments...)
	e.successful = max(0, e.successful-failed)
	e.logger.Warn("Dataset rejected documents",
		zap.String("target", target),
		zap.Int("failed", failed),
		zap.Strings("ids", res.FailedDocuments),
	)
}
