package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryCollection struct {
	dim    int
	points map[string]Point
}

type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore returns an exact-search in-process VectorStore. It backs
// tests and VECTOR_PROVIDER=memory local runs; semantics match the Qdrant
// adapter (cosine scores, empty result for unknown collections, idempotent
// upsert, deterministic tie break).
func NewMemoryStore() VectorStore {
	return &memoryStore{collections: map[string]*memoryCollection{}}
}

func (s *memoryStore) EnsureCollection(_ context.Context, collection string, dim int) error {
	if collection == "" {
		return fmt.Errorf("collection name required")
	}
	if dim <= 0 {
		return fmt.Errorf("vector dim must be positive, got %d", dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[collection]; ok {
		if existing.dim != dim {
			return fmt.Errorf("collection %q exists with dim=%d, requested dim=%d", collection, existing.dim, dim)
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{dim: dim, points: map[string]Point{}}
	return nil
}

func (s *memoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = &memoryCollection{dim: len(points[0].Values), points: map[string]Point{}}
		s.collections[collection] = col
	}
	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point id required")
		}
		if col.dim > 0 && len(p.Values) != col.dim {
			return fmt.Errorf("point %q dimension mismatch: expected=%d got=%d", p.ID, col.dim, len(p.Values))
		}
		stored := Point{
			ID:     p.ID,
			Values: append([]float32(nil), p.Values...),
		}
		if len(p.Payload) > 0 {
			stored.Payload = make(map[string]any, len(p.Payload))
			for k, v := range p.Payload {
				stored.Payload[k] = v
			}
		}
		col.points[p.ID] = stored
	}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(col.points, id)
	}
	return nil
}

func (s *memoryStore) Query(_ context.Context, collection string, q []float32, topK int) ([]Match, error) {
	if len(q) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return []Match{}, nil
	}

	out := make([]Match, 0, len(col.points))
	for _, p := range col.points {
		out = append(out, Match{ID: p.ID, Score: cosine(q, p.Values)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
