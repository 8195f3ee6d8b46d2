// Package record defines the atomic unit of indexing shared by the ingestion
// and retrieval layers: a typed UTF-8 text payload plus provenance metadata.
// Records are produced transiently during an ingestion pass and upserted into
// the Indexer; the persisted collection is the durable state, not the Record.
package record

import "fmt"

// Collection type names. The set is closed — records carrying any other type
// are not indexable and are dropped by the Indexer.
const (
	// TypePDFChunks holds paragraph-level text chunks from PDF pages.
	TypePDFChunks = "pdf_chunks"
	// TypeFigureCaptions holds figure captions, optionally paired with an
	// extracted image artifact.
	TypeFigureCaptions = "figure_captions"
	// TypeTableExtracts holds table text, optionally paired with a TSV export.
	TypeTableExtracts = "table_extracts"
	// TypeDatasetCards holds one-line dataset summaries for CSV datasets.
	TypeDatasetCards = "dataset_cards"
)

// Types returns the closed set of collection type names in canonical order.
func Types() []string {
	return []string{TypePDFChunks, TypeFigureCaptions, TypeTableExtracts, TypeDatasetCards}
}

// KnownType reports whether t is a member of the closed type set.
func KnownType(t string) bool {
	switch t {
	case TypePDFChunks, TypeFigureCaptions, TypeTableExtracts, TypeDatasetCards:
		return true
	}
	return false
}

// Record is the unit of indexing. Metadata values are restricted to strings
// and ints so they round-trip through any store backend's payload encoding.
type Record struct {
	// Type is the target collection name (one of the Type* constants).
	Type string

	// Text is the content used for embedding and display. A Record with
	// empty Text carries no retrievable signal and is never indexed.
	Text string

	// Metadata holds provenance fields. A stable "id" entry makes upserts
	// idempotent across rebuild runs; records without one receive a fresh
	// identifier on every upsert.
	Metadata map[string]any
}

// ID returns the stable identity key from metadata, or "" when absent.
func (r Record) ID() string {
	if r.Metadata == nil {
		return ""
	}
	if id, ok := r.Metadata["id"].(string); ok {
		return id
	}
	return ""
}

// ChunkID builds the identity key for a text chunk: {doc}::p{page}::c{chunk}.
// Page and chunk indices are 1-based; the chunk index is scoped to its page.
func ChunkID(doc string, page, chunk int) string {
	return fmt.Sprintf("%s::p%d::c%d", doc, page, chunk)
}

// FigureID builds the identity key for a figure record: {doc}::p{page}::fig{n}.
func FigureID(doc string, page, fig int) string {
	return fmt.Sprintf("%s::p%d::fig%d", doc, page, fig)
}

// TableID builds the identity key for a table record: {doc}::p{page}::tab{n}.
func TableID(doc string, page, tab int) string {
	return fmt.Sprintf("%s::p%d::tab%d", doc, page, tab)
}
