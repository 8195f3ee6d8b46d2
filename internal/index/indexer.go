package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/embedder"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/record"
)

// embedBatchSize bounds how many texts are sent per embedding request.
const embedBatchSize = 64

// defaultDimensions is the vector size used when the caller passes none.
const defaultDimensions = 384

// Indexer routes typed records into their collections, embedding record
// text at upsert time. With a nil Embedder records are indexed with
// placeholder zero vectors and remain reachable through lexical lookup.
type Indexer struct {
	store Store
	emb   embedder.Embedder
	dims  int
	met   *metrics.Metrics
	log   *slog.Logger
}

// New constructs an Indexer over the given store. dims is the vector size
// for newly created collections; pass 0 for the default.
func New(store Store, emb embedder.Embedder, dims int, met *metrics.Metrics, log *slog.Logger) *Indexer {
	if dims <= 0 {
		dims = defaultDimensions
	}
	if met == nil {
		met = metrics.Nop()
	}
	return &Indexer{store: store, emb: emb, dims: dims, met: met, log: log}
}

// Collections returns the collection names the Indexer manages, in
// canonical order.
func (ix *Indexer) Collections() []string {
	return record.Types()
}

// EnsureCollections creates every managed collection that does not exist.
func (ix *Indexer) EnsureCollections(ctx context.Context) error {
	for _, name := range ix.Collections() {
		if err := ix.store.EnsureCollection(ctx, name, ix.dims); err != nil {
			return err
		}
	}
	return nil
}

// ResetCollection drops the named collection. The next upsert recreates it.
func (ix *Indexer) ResetCollection(ctx context.Context, name string) error {
	return ix.store.DeleteCollection(ctx, name)
}

// UpsertRecords indexes a batch of records. Records with empty text or an
// unknown type are counted and skipped, never indexed. Records carrying a
// stable id are idempotent across runs; records without one get a fresh
// UUID per call.
func (ix *Indexer) UpsertRecords(ctx context.Context, recs []record.Record) error {
	buckets := make(map[string][]record.Record)
	for _, r := range recs {
		if r.Text == "" {
			ix.met.RecordsSkipped.WithLabelValues(metrics.ReasonEmptyText).Inc()
			continue
		}
		if !record.KnownType(r.Type) {
			ix.met.RecordsSkipped.WithLabelValues(metrics.ReasonUnknownType).Inc()
			ix.log.Warn("indexer: dropping record of unknown type",
				slog.String("type", r.Type),
				slog.String("id", r.ID()),
			)
			continue
		}
		buckets[r.Type] = append(buckets[r.Type], r)
	}

	for _, name := range ix.Collections() {
		batch := buckets[name]
		if len(batch) == 0 {
			continue
		}
		if err := ix.store.EnsureCollection(ctx, name, ix.dims); err != nil {
			return err
		}

		points := make([]Point, len(batch))
		texts := make([]string, len(batch))
		for i, r := range batch {
			id := r.ID()
			if id == "" {
				id = uuid.NewString()
			}
			points[i] = Point{ID: id, Text: r.Text, Metadata: r.Metadata}
			texts[i] = r.Text
		}

		vectors := ix.embedOrZero(ctx, texts)
		for i := range points {
			points[i].Vector = vectors[i]
		}

		if err := ix.store.Upsert(ctx, name, points); err != nil {
			return fmt.Errorf("indexer: upsert %d records into %q: %w", len(points), name, err)
		}
		ix.met.RecordsIndexed.WithLabelValues(name).Add(float64(len(points)))
		ix.log.Info("indexer: upserted batch",
			slog.String("collection", name),
			slog.Int("records", len(points)),
		)
	}
	return nil
}

// embedOrZero embeds texts in bounded batches. Without embedding capability,
// or when a batch fails, the affected texts get zero vectors so indexing
// still completes.
func (ix *Indexer) embedOrZero(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, ix.dims)
	}
	if ix.emb == nil {
		return vectors
	}

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		embedded, err := ix.emb.Embed(ctx, texts[start:end])
		if err != nil {
			ix.met.EmbedFailures.Inc()
			ix.log.Warn("indexer: embedding batch failed, indexing with placeholder vectors",
				slog.Int("batch_start", start),
				slog.Int("batch_size", end-start),
				slog.String("error", err.Error()),
			)
			continue
		}
		for i, vec := range embedded {
			if len(vec) > 0 {
				vectors[start+i] = vec
			}
		}
	}
	return vectors
}

// Stats returns the point count per managed collection. Collections that
// fail to count (typically: not yet created) report 0.
func (ix *Indexer) Stats(ctx context.Context) map[string]uint64 {
	out := make(map[string]uint64, len(ix.Collections()))
	for _, name := range ix.Collections() {
		n, err := ix.store.Count(ctx, name)
		if err != nil {
			ix.log.Debug("indexer: count failed",
				slog.String("collection", name),
				slog.String("error", err.Error()),
			)
			n = 0
		}
		out[name] = n
	}
	return out
}
