package ingest

// Image is a raw embedded image extracted from a PDF page, before any
// dimension filtering or deduplication.
type Image struct {
	// Data is the raw encoded image bytes (PNG, JPEG, ...).
	Data []byte
	// Ext is the file extension without the dot ("png", "jpg"). Empty when
	// the extractor could not tell; the filter then derives it from the
	// decoded image header.
	Ext string
}

// Reader is the page-oriented view of an open PDF document. Page numbers are
// 1-based throughout the pipeline.
type Reader interface {
	// PageCount returns the number of pages in the document.
	PageCount() int
	// PageText returns the visible text of the given page. Paragraph breaks
	// are represented as blank lines.
	PageText(page int) (string, error)
	// PageImages returns the embedded images of the given page, in document
	// order.
	PageImages(page int) ([]Image, error)
	// Close releases the underlying file handle.
	Close() error
}

// OpenFunc opens a PDF file as a Reader. The concrete implementation is
// injected by the caller so the pipeline itself stays free of PDF library
// dependencies and tests can substitute in-memory documents.
type OpenFunc func(path string) (Reader, error)
