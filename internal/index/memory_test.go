package index

import (
	"context"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMemoryQueryVectorOrdering(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, "c", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	err := store.Upsert(ctx, "c", []Point{
		{ID: "far", Text: "far", Vector: []float32{0, 1}},
		{ID: "near", Text: "near", Vector: []float32{1, 0.1}},
		{ID: "exact", Text: "exact", Vector: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	hits, err := store.QueryVector(ctx, "c", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("QueryVector() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "exact" || hits[1].ID != "near" {
		t.Errorf("hit order = [%s %s], want [exact near]", hits[0].ID, hits[1].ID)
	}
}

func TestMemoryQueryText(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, "c", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	err := store.Upsert(ctx, "c", []Point{
		{ID: "both", Text: "Stromnachfrage in TWh bis 2050"},
		{ID: "one", Text: "Nachfrage nach Strom"},
		{ID: "none", Text: "unrelated content"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	hits, err := store.QueryText(ctx, "c", "stromnachfrage twh", 5)
	if err != nil {
		t.Fatalf("QueryText() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].ID != "both" {
		t.Errorf("hit = %q, want both", hits[0].ID)
	}
	if hits[0].Score != 0 {
		t.Errorf("lexical score = %v, want 0", hits[0].Score)
	}
}

func TestMemoryDeleteCollection(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, "c", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	if err := store.DeleteCollection(ctx, "c"); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}
	// Deleting a collection that no longer exists is fine.
	if err := store.DeleteCollection(ctx, "c"); err != nil {
		t.Fatalf("second DeleteCollection() error = %v", err)
	}
	if _, err := store.QueryVector(ctx, "c", []float32{1, 0}, 1); err == nil {
		t.Error("QueryVector() on deleted collection succeeded, want error")
	}
}
