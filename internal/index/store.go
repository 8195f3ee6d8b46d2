// Package index persists typed records into named vector collections and
// serves similarity and lexical lookups over them. The Store interface has
// two implementations: a Qdrant-backed store for deployments and an
// in-memory store for tests and single-shot runs.
package index

import (
	"context"
	"math"
)

// Point is one indexable entry: stable identity, display text, an embedding
// vector, and provenance metadata.
type Point struct {
	// ID is the stable identity key. Upserting the same ID replaces the
	// previous point.
	ID string
	// Text is the content the vector was computed from.
	Text string
	// Vector is the embedding. All points of a collection share one size;
	// an all-zero vector marks a point indexed without embedding capability.
	Vector []float32
	// Metadata holds provenance fields (string or int values).
	Metadata map[string]any
}

// Hit is one search result.
type Hit struct {
	// ID is the stored point's identity key.
	ID string
	// Text is the stored content.
	Text string
	// Score is the backend's similarity score. Lexical lookups report 0;
	// the retriever rescores.
	Score float32
	// Vector is the stored embedding when the backend returns it, else nil.
	Vector []float32
	// Metadata holds the stored provenance fields.
	Metadata map[string]any
}

// Store is a collection-oriented vector store.
type Store interface {
	// EnsureCollection creates the named collection with the given vector
	// size if it does not exist. Idempotent.
	EnsureCollection(ctx context.Context, name string, dims int) error

	// DeleteCollection removes the named collection. Deleting a collection
	// that does not exist is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Upsert writes points into the collection, replacing points that share
	// an ID.
	Upsert(ctx context.Context, name string, points []Point) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context, name string) (uint64, error)

	// QueryVector returns the points nearest to vec by cosine similarity,
	// best first, at most limit.
	QueryVector(ctx context.Context, name string, vec []float32, limit int) ([]Hit, error)

	// QueryText returns points whose text matches the query lexically, at
	// most limit. Hit scores are 0.
	QueryText(ctx context.Context, name string, query string, limit int) ([]Hit, error)

	// Close releases backend resources.
	Close() error
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// lengths or zero norm score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
