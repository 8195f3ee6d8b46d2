package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixedEmbedder returns the same vector for every text.
type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vec
	}
	return out, nil
}

func chunkRecord(id, text string) record.Record {
	return record.Record{
		Type:     record.TypePDFChunks,
		Text:     text,
		Metadata: map[string]any{"id": id, "doc": "doc", "page": 1, "chunk_id": 1},
	}
}

func TestUpsertIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := New(store, &fixedEmbedder{vec: []float32{1, 0, 0}}, 3, metrics.Nop(), testLogger())
	ctx := context.Background()

	if err := ix.UpsertRecords(ctx, []record.Record{chunkRecord("doc::p1::c1", "first version")}); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	if err := ix.UpsertRecords(ctx, []record.Record{chunkRecord("doc::p1::c1", "second version")}); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}

	n, err := store.Count(ctx, record.TypePDFChunks)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("count after double upsert = %d, want 1", n)
	}

	hits, err := store.QueryVector(ctx, record.TypePDFChunks, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("QueryVector() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Text != "second version" {
		t.Errorf("stored content = %+v, want latest write", hits)
	}
}

func TestEmptyTextExcluded(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := New(store, nil, 3, metrics.Nop(), testLogger())
	ctx := context.Background()

	recs := []record.Record{
		chunkRecord("doc::p1::c1", "kept"),
		{Type: record.TypeFigureCaptions, Text: "", Metadata: map[string]any{"id": "doc::p1::fig1"}},
	}
	if err := ix.UpsertRecords(ctx, recs); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}

	stats := ix.Stats(ctx)
	if stats[record.TypePDFChunks] != 1 {
		t.Errorf("pdf_chunks count = %d, want 1", stats[record.TypePDFChunks])
	}
	if stats[record.TypeFigureCaptions] != 0 {
		t.Errorf("figure_captions count = %d, want 0", stats[record.TypeFigureCaptions])
	}
}

func TestUnknownTypeExcluded(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := New(store, nil, 3, metrics.Nop(), testLogger())
	ctx := context.Background()

	recs := []record.Record{
		{Type: "mystery_collection", Text: "some text", Metadata: map[string]any{"id": "x"}},
	}
	if err := ix.UpsertRecords(ctx, recs); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	for name, n := range ix.Stats(ctx) {
		if n != 0 {
			t.Errorf("collection %q count = %d, want 0", name, n)
		}
	}
}

func TestRecordsWithoutIDNotIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := New(store, nil, 3, metrics.Nop(), testLogger())
	ctx := context.Background()

	rec := record.Record{Type: record.TypePDFChunks, Text: "anonymous"}
	if err := ix.UpsertRecords(ctx, []record.Record{rec}); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	if err := ix.UpsertRecords(ctx, []record.Record{rec}); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	n, _ := store.Count(ctx, record.TypePDFChunks)
	if n != 2 {
		t.Errorf("count = %d, want 2 (no stable id, no idempotency)", n)
	}
}

func TestEmbedFailureDegradesToZeroVectors(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := New(store, &fixedEmbedder{err: fmt.Errorf("backend down")}, 3, metrics.Nop(), testLogger())
	ctx := context.Background()

	if err := ix.UpsertRecords(ctx, []record.Record{chunkRecord("doc::p1::c1", "still indexed")}); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	n, _ := store.Count(ctx, record.TypePDFChunks)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	// The record stays reachable through lexical lookup.
	hits, err := store.QueryText(ctx, record.TypePDFChunks, "indexed", 5)
	if err != nil {
		t.Fatalf("QueryText() error = %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("lexical hits = %d, want 1", len(hits))
	}
}

func TestResetCollection(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := New(store, nil, 3, metrics.Nop(), testLogger())
	ctx := context.Background()

	if err := ix.UpsertRecords(ctx, []record.Record{chunkRecord("doc::p1::c1", "text")}); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	if err := ix.ResetCollection(ctx, record.TypePDFChunks); err != nil {
		t.Fatalf("ResetCollection() error = %v", err)
	}
	if n := ix.Stats(ctx)[record.TypePDFChunks]; n != 0 {
		t.Errorf("count after reset = %d, want 0", n)
	}
}
