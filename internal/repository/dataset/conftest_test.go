package dataset

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/workflows/internal/db"
	"github.com/kailas-cloud/workflows/internal/domain/document"
)

// memStore implements the consumer interface over maps.
type memStore struct {
	mu      sync.Mutex
	json    map[string][]byte
	zsets   map[string][]string
	hashes  map[string]map[string]string
	setErr  error
	mgets   int
	zranges int
}

func newMemStore() *memStore {
	return &memStore{
		json:   map[string][]byte{},
		zsets:  map[string][]string{},
		hashes: map[string]map[string]string{},
	}
}

func (m *memStore) JSONSetMulti(_ context.Context, items []db.JSONSetItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	for _, it := range items {
		m.json[it.Key] = slices.Clone(it.Data)
	}
	return nil
}

func (m *memStore) JSONMGet(_ context.Context, keys []string, _ string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mgets++
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.json[k]
	}
	return out, nil
}

func (m *memStore) ZAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.zsets[key]
	for _, mem := range members {
		if i, found := slices.BinarySearch(set, mem); !found {
			set = slices.Insert(set, i, mem)
		}
	}
	m.zsets[key] = set
	return nil
}

func (m *memStore) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.zsets[key])), nil
}

func (m *memStore) ZRangeAfter(_ context.Context, key, after string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zranges++
	set := m.zsets[key]
	start := 0
	if after != "" {
		i, found := slices.BinarySearch(set, after)
		if found {
			i++
		}
		start = i
	}
	end := min(start+limit, len(set))
	return slices.Clone(set[start:end]), nil
}

func (m *memStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		h := m.hashes[it.Key]
		if h == nil {
			h = map[string]string{}
			m.hashes[it.Key] = h
		}
		for k, v := range it.Fields {
			h[k] = v
		}
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) docKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.json {
		if strings.Contains(k, ":doc:") {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// seed inserts n documents doc-000..doc-(n-1) with n and even fields.
func seed(t *testing.T, r *Repo, n int) {
	t.Helper()
	docs := make(document.List, n)
	for i := range n {
		docs[i] = document.Document{"_id": fmt.Sprintf("doc-%03d", i), "n": i, "even": i%2 == 0}
	}
	if _, err := r.Insert(context.Background(), docs); err != nil {
		t.Fatalf("seed: %v", err)
	}
}
