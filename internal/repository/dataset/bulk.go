package dataset

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
)

// BulkInsert splits docs into chunks and inserts them over a worker pool.
// Chunk failures are collected; their ids are reported as failed documents.
func (r *Repo) BulkInsert(ctx context.Context, docs document.List, chunkSize int) (dataset.UpdateResult, error) {
	var total dataset.UpdateResult
	chunks := docs.Chunks(chunkSize)
	if len(chunks) == 0 {
		return total, nil
	}

	jobs := make(chan document.List, r.bulkWorkers*2)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for range min(r.bulkWorkers, len(chunks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				res, err := r.Insert(ctx, chunk)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
					total.FailedDocuments = append(total.FailedDocuments, chunk.IDs()...)
				} else {
					total.Add(res)
				}
				mu.Unlock()
				if err != nil {
					r.logger.Warn("Bulk insert chunk failed", zap.Int("size", len(chunk)), zap.Error(err))
				}
			}
		}()
	}

feed:
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()
			break feed
		case jobs <- c:
		}
	}
	close(jobs)
	wg.Wait()

	return total, errors.Join(errs...)
}
