package workflows

import (
	"context"
	"sync"

	"github.com/kailas-cloud/workflows/internal/domain/job"
)

// --- jobStore mock ---

type mockJobStore struct {
	mu       sync.Mutex
	statuses []job.StatusUpdate
	progress []job.Progress
	getFn    func(ctx context.Context, jobID string) (job.Record, error)
}

func (m *mockJobStore) SetStatus(_ context.Context, _ string, u job.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, u)
	return nil
}

func (m *mockJobStore) RegisterLineage(context.Context, string, []job.FieldLineage) error {
	return nil
}

func (m *mockJobStore) UpdateProgress(_ context.Context, p job.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, p)
	return nil
}

func (m *mockJobStore) Get(ctx context.Context, jobID string) (job.Record, error) {
	return m.getFn(ctx, jobID)
}

// --- Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// --- helpers ---

func testClient(t interface{ Fatalf(string, ...any) }) *Client {
	c, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	return c
}
