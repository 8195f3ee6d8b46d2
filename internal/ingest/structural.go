package ingest

import "context"

// Element categories produced by a structural parser. The pipeline only
// reacts to these three; other categories pass through unhandled.
const (
	ElementTable  = "Table"
	ElementFigure = "Figure"
	ElementImage  = "Image"
)

// Element is a layout-aware fragment of a parsed document: a detected table,
// a figure caption, or an inline image with optional raw bytes.
type Element struct {
	// Category is the element kind (Table, Figure, Image, or any other
	// category the parser emits).
	Category string
	// Text is the element's text content. For tables this is the row text
	// that gets exported as TSV.
	Text string
	// Page is the 1-based page number the element appeared on.
	Page int
	// Image holds raw image bytes for Image elements that carry payload.
	Image []byte
}

// StructuralParser performs layout-aware document analysis, typically backed
// by a remote service. A nil StructuralParser means the capability is
// unavailable and ingestion falls back to heuristic caption scanning only.
type StructuralParser interface {
	Parse(ctx context.Context, pdfPath string) ([]Element, error)
}
