package memory

import (
	"slices"
	"sync"
)

// Registry holds named datasets, creating them on first use.
type Registry struct {
	mu       sync.Mutex
	datasets map[string]*Dataset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{datasets: map[string]*Dataset{}}
}

// Dataset returns the dataset with id, creating an empty one when unknown.
func (r *Registry) Dataset(id string) *Dataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.datasets[id]
	if !ok {
		d = NewDataset(id, nil)
		r.datasets[id] = d
	}
	return d
}

// IDs returns the known dataset ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.datasets))
	for id := range r.datasets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
