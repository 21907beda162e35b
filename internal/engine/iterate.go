package engine

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/metrics"
)

// Iterate initializes the engine if needed and yields the active document set
// page by page. The sequence is not rewindable: the cursor only moves forward,
// and a fresh engine is needed to read the dataset again.
func (e *Engine) Iterate(ctx context.Context) iter.Seq2[document.List, error] {
	return func(yield func(document.List, error) bool) {
		if err := e.init(ctx); err != nil {
			yield(nil, err)
			return
		}
		for docs, err := range e.pages(ctx, e.filters) {
			if !yield(docs, err) || err != nil {
				return
			}
		}
	}
}

// pages pulls until an empty page or the run limit. The cursor is advanced
// to whatever the dataset returned, including on the terminating empty page.
// Documents carrying only an identifier are dropped. Progress is reported
// after the consumer is done with each page.
func (e *Engine) pages(ctx context.Context, filters []filter.Filter) iter.Seq2[document.List, error] {
	return func(yield func(document.List, error) bool) {
		pulled := 0
		for {
			pageSize := e.pullSize
			if e.cfg.limit > 0 {
				if pulled >= e.cfg.limit {
					return
				}
				pageSize = min(pageSize, e.cfg.limit-pulled)
			}

			page, err := e.pull(ctx, dataset.Query{
				PageSize:      pageSize,
				Filters:       filters,
				SelectFields:  e.cfg.selectFields,
				AfterID:       e.afterID,
				WorkerNumber:  e.cfg.workerNumber,
				IncludeVector: e.cfg.includeVector,
			})
			if err != nil {
				yield(nil, err)
				return
			}
			e.afterID = page.AfterID
			if len(page.Documents) == 0 {
				return
			}

			docs := page.Documents
			if e.cfg.limit > 0 && pulled+len(docs) > e.cfg.limit {
				docs = docs[:e.cfg.limit-pulled]
			}
			pulled += len(docs)
			metrics.EngineDocumentsPulledTotal.WithLabelValues(e.variant).Add(float64(len(docs)))

			consumed := len(docs)
			docs = docs.WithPayload()
			if len(docs) > 0 && !yield(docs, nil) {
				return
			}
			e.advanceProgress(ctx, consumed)
		}
	}
}

// pull fetches one page, retrying failures with a fixed delay. Exhausting
// the attempt budget is fatal for the run.
func (e *Engine) pull(ctx context.Context, q dataset.Query) (dataset.Page, error) {
	attempts := max(e.cfg.maxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		page, err := e.ds.Documents(ctx, q)
		if err == nil {
			err = validatePage(page)
		}
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return dataset.Page{}, fmt.Errorf("pull %s: %w", e.ds.ID(), ctx.Err())
		}

		lastErr = err
		metrics.EnginePullRetriesTotal.WithLabelValues(e.variant).Inc()
		e.logger.Warn("Pull failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.String("after_id", q.AfterID),
			zap.Error(err),
		)
		if attempt < attempts {
			if err := sleep(ctx, e.cfg.retryDelay); err != nil {
				return dataset.Page{}, fmt.Errorf("pull %s: %w", e.ds.ID(), err)
			}
		}
	}
	return dataset.Page{}, fmt.Errorf("pull %s after %d attempts: %w: %w",
		e.ds.ID(), attempts, domain.ErrMaxRetriesExceeded, lastErr)
}

// validatePage rejects pages the cursor loop cannot make progress with.
func validatePage(p dataset.Page) error {
	if len(p.Documents) == 0 {
		return nil
	}
	if p.AfterID == "" {
		return fmt.Errorf("non-empty page without cursor: %w", domain.ErrMalformedResponse)
	}
	for i, d := range p.Documents {
		if d.ID() == "" {
			return fmt.Errorf("document %d has no %s: %w", i, document.IDField, domain.ErrMalformedResponse)
		}
	}
	return nil
}

// advanceProgress reports a single counter across passes: a multi-pass run
// reports pass_index*size + processed out of size*n_passes.
func (e *Engine) advanceProgress(ctx context.Context, n int) {
	e.processed += n
	if e.cfg.reporter == nil {
		return
	}
	total := e.size * e.nPasses
	done := min(e.passIndex*e.size+e.processed, total)
	err := e.cfg.reporter.UpdateProgress(ctx, job.Progress{
		JobID:        e.cfg.jobID,
		WorkerNumber: e.cfg.workerNumber,
		Step:         e.cfg.step,
		NProcessed:   done,
		NTotal:       total,
	})
	if err != nil {
		e.logger.Warn("Progress update failed", zap.Error(err))
	}
}

// startPass resets the cursor and per-pass counters for pass i.
func (e *Engine) startPass(i int) {
	e.passIndex = i
	e.processed = 0
	e.afterID = ""
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
