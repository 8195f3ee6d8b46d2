package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It keeps every collection in a map
// keyed by point ID and brute-forces similarity queries, which is fine for
// tests and small single-shot corpora.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Point)}
}

// EnsureCollection creates the collection if missing. The dims argument is
// accepted for interface parity but not enforced.
func (m *MemoryStore) EnsureCollection(_ context.Context, name string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = make(map[string]Point)
	}
	return nil
}

// DeleteCollection drops the collection. Missing collections are ignored.
func (m *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

// Upsert writes points, replacing same-ID entries.
func (m *MemoryStore) Upsert(_ context.Context, name string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("memory store: collection %q does not exist", name)
	}
	for _, p := range points {
		coll[p.ID] = p
	}
	return nil
}

// Count returns the number of points in the collection. A missing collection
// counts as empty.
func (m *MemoryStore) Count(_ context.Context, name string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.collections[name])), nil
}

// QueryVector brute-forces cosine similarity over the collection. Ties break
// by ID so results are deterministic.
func (m *MemoryStore) QueryVector(_ context.Context, name string, vec []float32, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("memory store: collection %q does not exist", name)
	}

	hits := make([]Hit, 0, len(coll))
	for _, p := range coll {
		hits = append(hits, Hit{
			ID:       p.ID,
			Text:     p.Text,
			Score:    Cosine(vec, p.Vector),
			Vector:   p.Vector,
			Metadata: p.Metadata,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// QueryText scores points by the number of query tokens their text contains,
// case-insensitively. Points matching no token are excluded. Hit scores are
// 0 per the Store contract; the token count only orders results.
func (m *MemoryStore) QueryText(_ context.Context, name string, query string, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("memory store: collection %q does not exist", name)
	}

	tokens := strings.Fields(strings.ToLower(query))
	type scored struct {
		hit     Hit
		matches int
	}
	var matched []scored
	for _, p := range coll {
		text := strings.ToLower(p.Text)
		n := 0
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		matched = append(matched, scored{
			hit:     Hit{ID: p.ID, Text: p.Text, Vector: p.Vector, Metadata: p.Metadata},
			matches: n,
		})
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].matches != matched[j].matches {
			return matched[i].matches > matched[j].matches
		}
		return matched[i].hit.ID < matched[j].hit.ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	hits := make([]Hit, len(matched))
	for i, s := range matched {
		hits[i] = s.hit
	}
	return hits, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
