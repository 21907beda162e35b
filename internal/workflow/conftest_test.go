package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/batch"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/job"
)

// mockEngine is a scripted Engine.
type mockEngine struct {
	applyFn func(ctx context.Context) error
	applied int

	ratio   float64
	size    int
	errs    []batch.ChunkError
	output  document.List
	lineage []job.FieldLineage
	fields  []string
}

func (m *mockEngine) Apply(ctx context.Context) error {
	m.applied++
	if m.applyFn != nil {
		return m.applyFn(ctx)
	}
	return nil
}

func (m *mockEngine) SuccessRatio() float64 { return m.ratio }
func (m *mockEngine) Size() int { return m.size }
func (m *mockEngine) Errors() []batch.ChunkError { return m.errs }
func (m *mockEngine) Output() document.List { return m.output }
func (m *mockEngine) Lineage() []job.FieldLineage { return m.lineage }
func (m *mockEngine) DatasetID() string { return "articles" }
func (m *mockEngine) OutputFields() []string { return m.fields }

// mockReporter records status transitions.
type mockReporter struct {
	mu         sync.Mutex
	updates    []job.StatusUpdate
	lineage    []job.FieldLineage
	lineageErr error
	statusErr  map[job.Status]error
}

func (m *mockReporter) SetStatus(_ context.Context, _ string, u job.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	return m.statusErr[u.Status]
}

func (m *mockReporter) RegisterLineage(_ context.Context, _ string, l []job.FieldLineage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lineage = l
	return m.lineageErr
}

func (m *mockReporter) statuses() []job.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]job.Status, 0, len(m.updates))
	for _, u := range m.updates {
		out = append(out, u.Status)
	}
	return out
}

func (m *mockReporter) last() job.StatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[len(m.updates)-1]
}

// mockCounter answers Count from a function of the filters.
type mockCounter struct {
	countFn func(filters []filter.Filter) (int, error)
	calls   int
}

func (m *mockCounter) Count(_ context.Context, filters []filter.Filter) (int, error) {
	m.calls++
	return m.countFn(filters)
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

// spendTokens simulates an embedding call inside the engine.
func spendTokens(n int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		domain.UsageFromContext(ctx).AddTokens(n)
		return nil
	}
}
