package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/job"
)

// Jobs is an in-process job status sink. Safe for concurrent use.
type Jobs struct {
	mu       sync.RWMutex
	records  map[string]*job.Record
	progress map[string]map[string]job.Progress
	history  map[string][]job.Status
	now      func() time.Time
}

// NewJobs creates an empty job sink.
func NewJobs() *Jobs {
	return &Jobs{
		records:  map[string]*job.Record{},
		progress: map[string]map[string]job.Progress{},
		history:  map[string][]job.Status{},
		now:      time.Now,
	}
}

func (j *Jobs) record(jobID string) *job.Record {
	rec, ok := j.records[jobID]
	if !ok {
		rec = &job.Record{JobID: jobID}
		j.records[jobID] = rec
	}
	return rec
}

// SetStatus records a status transition.
func (j *Jobs) SetStatus(_ context.Context, jobID string, u job.StatusUpdate) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := j.record(jobID)
	rec.Status = u.Status
	if u.Metadata != nil {
		rec.Metadata = u.Metadata
	}
	if len(u.Output) > 0 {
		rec.Output = u.Output
	}
	if u.UserMessage != "" {
		rec.UserMessage = u.UserMessage
	}
	rec.UpdatedAt = j.now().UTC()
	j.history[jobID] = append(j.history[jobID], u.Status)
	return nil
}

// RegisterLineage stores the job's field lineage.
func (j *Jobs) RegisterLineage(_ context.Context, jobID string, lineage []job.FieldLineage) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.record(jobID).Lineage = slices.Clone(lineage)
	return nil
}

// UpdateProgress keeps the latest progress per worker step.
func (j *Jobs) UpdateProgress(_ context.Context, p job.Progress) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	m := j.progress[p.JobID]
	if m == nil {
		m = map[string]job.Progress{}
		j.progress[p.JobID] = m
	}
	m[fmt.Sprintf("%s:%d", p.Step, p.WorkerNumber)] = p
	return nil
}

// Get returns a copy of the job record.
func (j *Jobs) Get(_ context.Context, jobID string) (job.Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec, ok := j.records[jobID]
	if !ok {
		return job.Record{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	out := *rec
	out.Lineage = slices.Clone(rec.Lineage)
	for _, p := range j.progress[jobID] {
		out.Progress = append(out.Progress, p)
	}
	slices.SortFunc(out.Progress, func(a, b job.Progress) int {
		if c := strings.Compare(a.Step, b.Step); c != 0 {
			return c
		}
		return a.WorkerNumber - b.WorkerNumber
	})
	return out, nil
}

// History returns every status a job passed through, in order.
func (j *Jobs) History(jobID string) []job.Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.history[jobID])
}
