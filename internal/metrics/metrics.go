// Package metrics registers the Prometheus metrics owned by the ingestion
// and retrieval pipeline. A single Metrics instance is created at startup and
// shared by reference into the components that emit observations; tests
// construct their own instance against a fresh registry so they stay hermetic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reason label values used by RecordsSkipped.
const (
	// ReasonEmptyText marks records excluded because they carry no text.
	ReasonEmptyText = "empty_text"
	// ReasonUnknownType marks records whose type is outside the closed set.
	ReasonUnknownType = "unknown_type"
)

// Metrics holds all Prometheus metrics emitted by the pipeline.
type Metrics struct {
	// RecordsIndexed counts records written to the store, partitioned by
	// collection name.
	RecordsIndexed *prometheus.CounterVec

	// RecordsSkipped counts records excluded from indexing, partitioned by
	// reason ("empty_text", "unknown_type").
	RecordsSkipped *prometheus.CounterVec

	// ImagesStored counts extracted images persisted to the content store.
	ImagesStored prometheus.Counter

	// ImagesDeduplicated counts images skipped because an identical byte
	// sequence was already stored.
	ImagesDeduplicated prometheus.Counter

	// ImagesFiltered counts images rejected by the minimum-dimension filter
	// or undecodable image headers.
	ImagesFiltered prometheus.Counter

	// Searches counts retrieval queries, partitioned by mode ("pdf",
	// "datasets") and scoring path ("vector", "lexical").
	Searches *prometheus.CounterVec

	// EmbedFailures counts failed calls to the embedding capability.
	EmbedFailures prometheus.Counter
}

// New registers all pipeline metrics against reg and returns the populated
// Metrics. promauto.With(reg) is used so each call registers into the
// provided registry rather than the global default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RecordsIndexed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "decipher",
			Subsystem: "index",
			Name:      "records_total",
			Help:      "Records upserted into the store, partitioned by collection.",
		}, []string{"collection"}),

		RecordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "decipher",
			Subsystem: "index",
			Name:      "records_skipped_total",
			Help:      "Records excluded from indexing, partitioned by reason.",
		}, []string{"reason"}),

		ImagesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "decipher",
			Subsystem: "ingest",
			Name:      "images_stored_total",
			Help:      "Extracted images persisted to the content store.",
		}),

		ImagesDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "decipher",
			Subsystem: "ingest",
			Name:      "images_deduplicated_total",
			Help:      "Images skipped because their content hash was already stored.",
		}),

		ImagesFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "decipher",
			Subsystem: "ingest",
			Name:      "images_filtered_total",
			Help:      "Images rejected by the minimum width/height/area filter.",
		}),

		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "decipher",
			Subsystem: "retrieve",
			Name:      "searches_total",
			Help:      "Retrieval queries, partitioned by mode and scoring path.",
		}, []string{"mode", "path"}),

		EmbedFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "decipher",
			Subsystem: "retrieve",
			Name:      "embed_failures_total",
			Help:      "Failed calls to the embedding capability.",
		}),
	}
}

// Nop returns a Metrics instance backed by a throwaway registry, for
// components constructed without an explicit metrics sink.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
