package vectorstore

import "context"

// Point is one entry destined for (or read from) a vector index collection.
// The ID is an opaque string shared with the embedding ledger; neither side
// may regenerate it independently.
type Point struct {
	ID      string
	Values  []float32
	Payload map[string]any
}

// Match is a query hit. Score is cosine similarity: larger is more similar.
type Match struct {
	ID    string
	Score float64
}

// VectorStore is the approximate-nearest-neighbor index, partitioned into
// named collections (one per embedding type).
//
// Query against a collection that does not exist returns an empty result, not
// an error. Upsert is idempotent on (collection, point ID). Results are
// ordered score descending with point-ID ascending as the tie break, so runs
// are deterministic.
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, dim int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Delete(ctx context.Context, collection string, ids []string) error
	Query(ctx context.Context, collection string, q []float32, topK int) ([]Match, error)
}
