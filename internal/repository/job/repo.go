package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/workflows/internal/db"
	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/job"
)

// store is the consumer interface for job records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Hash fields of the job record.
const (
	fieldStatus      = "status"
	fieldMetadata    = "metadata"
	fieldOutput      = "output"
	fieldUserMessage = "user_message"
	fieldUpdatedAt   = "updated_at"
)

// Repo stores workflow status, progress and lineage in Valkey.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Repo.
type Option func(*Repo)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) Option {
	return func(r *Repo) { r.prefix = prefix }
}

// WithLineageTTL expires lineage entries after ttl.
func WithLineageTTL(ttl time.Duration) Option {
	return func(r *Repo) { r.ttl = ttl }
}

// WithClock overrides the updated_at clock.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// New creates a job repository.
func New(s store, opts ...Option) *Repo {
	r := &Repo{store: s, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetStatus records one status transition.
func (r *Repo) SetStatus(ctx context.Context, jobID string, u job.StatusUpdate) error {
	fields := map[string]string{
		fieldStatus:    string(u.Status),
		fieldUpdatedAt: r.now().UTC().Format(time.RFC3339Nano),
	}
	if u.Metadata != nil {
		data, err := json.Marshal(u.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		fields[fieldMetadata] = string(data)
	}
	if len(u.Output) > 0 {
		data, err := json.Marshal(u.Output)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fields[fieldOutput] = string(data)
	}
	if u.UserMessage != "" {
		fields[fieldUserMessage] = u.UserMessage
	}

	if err := r.store.HSet(ctx, r.jobKey(jobID), fields); err != nil {
		return fmt.Errorf("hset %s: %w", r.jobKey(jobID), err)
	}
	return nil
}

// UpdateProgress records the latest progress of one worker step.
func (r *Repo) UpdateProgress(ctx context.Context, p job.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	field := fmt.Sprintf("%s:%d", p.Step, p.WorkerNumber)
	if err := r.store.HSet(ctx, r.progressKey(p.JobID), map[string]string{field: string(data)}); err != nil {
		return fmt.Errorf("hset %s: %w", r.progressKey(p.JobID), err)
	}
	return nil
}

// RegisterLineage stores which fields the job reads and writes.
func (r *Repo) RegisterLineage(ctx context.Context, jobID string, lineage []job.FieldLineage) error {
	data, err := json.Marshal(lineage)
	if err != nil {
		return fmt.Errorf("marshal lineage: %w", err)
	}
	key := r.lineageKey(jobID)
	if r.ttl > 0 {
		err = r.store.SetWithTTL(ctx, key, data, r.ttl)
	} else {
		err = r.store.Set(ctx, key, data)
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get returns the stored job record.
func (r *Repo) Get(ctx context.Context, jobID string) (job.Record, error) {
	h, err := r.store.HGetAll(ctx, r.jobKey(jobID))
	if err != nil {
		return job.Record{}, fmt.Errorf("hgetall %s: %w", r.jobKey(jobID), err)
	}
	if len(h) == 0 {
		return job.Record{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}

	rec := job.Record{
		JobID:       jobID,
		Status:      job.Status(h[fieldStatus]),
		UserMessage: h[fieldUserMessage],
	}
	if ts := h[fieldUpdatedAt]; ts != "" {
		if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return job.Record{}, fmt.Errorf("parse updated_at: %w", err)
		}
	}
	if raw := h[fieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Metadata); err != nil {
			return job.Record{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if raw := h[fieldOutput]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Output); err != nil {
			return job.Record{}, fmt.Errorf("decode output: %w", err)
		}
	}

	if rec.Progress, err = r.progress(ctx, jobID); err != nil {
		return job.Record{}, err
	}
	if rec.Lineage, err = r.lineage(ctx, jobID); err != nil {
		return job.Record{}, err
	}
	return rec, nil
}

func (r *Repo) progress(ctx context.Context, jobID string) ([]job.Progress, error) {
	h, err := r.store.HGetAll(ctx, r.progressKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.progressKey(jobID), err)
	}
	out := make([]job.Progress, 0, len(h))
	for field, raw := range h {
		var p job.Progress
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode progress %s: %w", field, err)
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b job.Progress) int {
		if c := strings.Compare(a.Step, b.Step); c != 0 {
			return c
		}
		return a.WorkerNumber - b.WorkerNumber
	})
	return out, nil
}

func (r *Repo) lineage(ctx context.Context, jobID string) ([]job.FieldLineage, error) {
	raw, err := r.store.Get(ctx, r.lineageKey(jobID))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.lineageKey(jobID), err)
	}
	var out []job.FieldLineage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode lineage: %w", err)
	}
	return out, nil
}

func (r *Repo) jobKey(id string) string { return r.prefix + "job:" + id }
func (r *Repo) progressKey(id string) string { return r.prefix + "job:" + id + ":progress" }
func (r *Repo) lineageKey(id string) string { return r.prefix + "job:" + id + ":lineage" }
