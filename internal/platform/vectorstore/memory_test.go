package vectorstore

import (
	"context"
	"testing"
)

func TestMemoryStoreQueryUnknownCollectionReturnsEmpty(t *testing.T) {
	s := NewMemoryStore()
	matches, err := s.Query(context.Background(), "missing", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches length: want=0 got=%d", len(matches))
	}
}

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "c", []Point{{ID: "p1", Values: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Same key, new vector: replace, not append.
	if err := s.Upsert(ctx, "c", []Point{{ID: "p1", Values: []float32{0, 1}}}); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}

	matches, err := s.Query(ctx, "c", []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches length: want=1 got=%d", len(matches))
	}
	if matches[0].Score < 0.999 {
		t.Fatalf("replaced vector score: want≈1 got=%f", matches[0].Score)
	}
}

func TestMemoryStoreQueryOrderAndTieBreak(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	points := []Point{
		{ID: "b", Values: []float32{1, 0}},
		{ID: "a", Values: []float32{1, 0}},
		{ID: "far", Values: []float32{0, 1}},
	}
	if err := s.Upsert(ctx, "c", points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Query(ctx, "c", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches length: want=3 got=%d", len(matches))
	}
	// Equal scores break ties by point id.
	if matches[0].ID != "a" || matches[1].ID != "b" {
		t.Fatalf("tie break order: want=[a b] got=[%s %s]", matches[0].ID, matches[1].ID)
	}
	if matches[2].ID != "far" {
		t.Fatalf("ranking: want far last, got=%s", matches[2].ID)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "c", []Point{{ID: "p1", Values: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Delete(ctx, "c", []string{"p1", "never-existed"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	matches, err := s.Query(ctx, "c", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches after delete: want=0 got=%d", len(matches))
	}
}

func TestMemoryStoreRejectsInvalidTopK(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Query(context.Background(), "c", []float32{1}, 0); err == nil {
		t.Fatalf("Query with topK=0: want error, got nil")
	}
}
