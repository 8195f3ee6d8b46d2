// Package retrieve answers queries over the indexed collections. A PDF
// search fans out across the three report-derived collections and fuses the
// results by similarity score; a dataset search covers only dataset cards.
// Every hit carries a citation back to its source document.
package retrieve

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/embedder"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/index"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/record"
)

// Default result counts per search mode.
const (
	defaultPDFTopK     = 6
	defaultDatasetTopK = 5
)

// perCollectionLimit caps how many candidates each collection contributes
// before fusion.
const perCollectionLimit = 10

// Citation points a hit back to its source.
type Citation struct {
	// Doc is the source document id, or the dataset id for dataset hits.
	Doc string `json:"doc"`
	// Page is the 1-based page number, 0 when not applicable.
	Page int `json:"page,omitempty"`
	// FigureID is the per-page figure number, 0 when not applicable.
	FigureID int `json:"figure_id,omitempty"`
	// TableID is the per-page table number, 0 when not applicable.
	TableID int `json:"table_id,omitempty"`
}

// Hit is one fused search result.
type Hit struct {
	// Type is the collection the hit came from.
	Type string `json:"type"`
	// ID is the record identity key.
	ID string `json:"id"`
	// Text is the stored content.
	Text string `json:"text"`
	// Score is the cosine similarity against the query, 0 in lexical mode.
	Score float32 `json:"score"`
	// Metadata holds the stored provenance fields.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Citation locates the hit in its source document or dataset.
	Citation Citation `json:"citation"`
}

// Retriever serves queries over a Store. A nil Embedder degrades every
// search to lexical lookup with zero scores.
type Retriever struct {
	store index.Store
	emb   embedder.Embedder
	met   *metrics.Metrics
	log   *slog.Logger
}

// New constructs a Retriever.
func New(store index.Store, emb embedder.Embedder, met *metrics.Metrics, log *slog.Logger) *Retriever {
	if met == nil {
		met = metrics.Nop()
	}
	return &Retriever{store: store, emb: emb, met: met, log: log}
}

// SearchPDF queries the three report-derived collections (pdf_chunks,
// figure_captions, table_extracts) and returns the top k hits fused across
// all of them by similarity, never per-collection top-k. k <= 0 uses the
// default.
func (r *Retriever) SearchPDF(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = defaultPDFTopK
	}
	collections := []string{record.TypePDFChunks, record.TypeFigureCaptions, record.TypeTableExtracts}
	return r.search(ctx, "pdf", query, collections, k)
}

// SearchDatasets queries the dataset_cards collection. k <= 0 uses the
// default.
func (r *Retriever) SearchDatasets(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = defaultDatasetTopK
	}
	return r.search(ctx, "datasets", query, []string{record.TypeDatasetCards}, k)
}

func (r *Retriever) search(ctx context.Context, mode, query string, collections []string, k int) ([]Hit, error) {
	queryVec := r.embedQuery(ctx, query)
	path := "vector"
	if queryVec == nil {
		path = "lexical"
	}
	r.met.Searches.WithLabelValues(mode, path).Inc()

	limit := k
	if limit > perCollectionLimit {
		limit = perCollectionLimit
	}

	var all []Hit
	for _, name := range collections {
		var (
			hits []index.Hit
			err  error
		)
		if queryVec != nil {
			hits, err = r.store.QueryVector(ctx, name, queryVec, limit)
		} else {
			hits, err = r.store.QueryText(ctx, name, query, limit)
		}
		if err != nil {
			// One failing collection degrades, never aborts, the search.
			r.log.Warn("retrieve: collection query failed",
				slog.String("collection", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		all = append(all, r.scoreHits(ctx, name, queryVec, hits)...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

// embedQuery returns the query embedding, or nil when embedding is
// unavailable or fails. A nil return switches the search to lexical mode.
func (r *Retriever) embedQuery(ctx context.Context, query string) []float32 {
	if r.emb == nil {
		return nil
	}
	vecs, err := r.emb.Embed(ctx, []string{query})
	if err != nil || len(vecs) != 1 || len(vecs[0]) == 0 {
		r.met.EmbedFailures.Inc()
		if err != nil {
			r.log.Warn("retrieve: query embedding failed, using lexical lookup",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return vecs[0]
}

// scoreHits converts store hits of one collection into fused Hits. Scores
// are recomputed as cosine similarity against the query vector; hits whose
// stored vector is unusable (nil or all-zero placeholder) are re-embedded
// from their text in one batch first.
func (r *Retriever) scoreHits(ctx context.Context, collection string, queryVec []float32, hits []index.Hit) []Hit {
	vectors := make([][]float32, len(hits))
	var stale []int
	for i, h := range hits {
		vectors[i] = h.Vector
		if queryVec != nil && !usableVector(h.Vector) && h.Text != "" {
			stale = append(stale, i)
		}
	}

	if len(stale) > 0 && r.emb != nil {
		texts := make([]string, len(stale))
		for i, idx := range stale {
			texts[i] = hits[idx].Text
		}
		embedded, err := r.emb.Embed(ctx, texts)
		if err != nil || len(embedded) != len(stale) {
			r.met.EmbedFailures.Inc()
			if err != nil {
				r.log.Warn("retrieve: hit re-embedding failed",
					slog.String("collection", collection),
					slog.String("error", err.Error()),
				)
			}
		} else {
			for i, idx := range stale {
				vectors[idx] = embedded[i]
			}
		}
	}

	out := make([]Hit, 0, len(hits))
	for i, h := range hits {
		score := float32(0)
		if queryVec != nil {
			score = index.Cosine(queryVec, vectors[i])
		}
		out = append(out, Hit{
			Type:     collection,
			ID:       h.ID,
			Text:     h.Text,
			Score:    score,
			Metadata: h.Metadata,
			Citation: citationFrom(collection, h.Metadata),
		})
	}
	return out
}

// usableVector reports whether a stored vector carries signal. All-zero
// vectors are placeholders written when embedding was unavailable at index
// time.
func usableVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return true
		}
	}
	return false
}

// citationFrom builds a Citation from a hit's provenance metadata.
func citationFrom(collection string, meta map[string]any) Citation {
	c := Citation{}
	if collection == record.TypeDatasetCards {
		c.Doc = metaString(meta, "dataset_id")
		return c
	}
	c.Doc = metaString(meta, "doc")
	c.Page = metaInt(meta, "page")
	c.FigureID = metaInt(meta, "figure_id")
	c.TableID = metaInt(meta, "table_id")
	return c
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

// metaInt coerces a metadata value to int. Stores round-trip ints through
// different widths (sqlite and qdrant payloads come back as int64, JSON as
// float64), so all three are accepted.
func metaInt(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
