// Package ingest turns PDF reports into indexable records: paragraph text
// chunks, figure captions paired with extracted images, and table extracts
// with TSV exports. The pipeline runs in five stages per document:
//
//  1. pre-extract embedded page images (dimension filter, content dedup)
//  2. paragraph chunking of page text
//  3. structural parse (optional) pairing tables and figure captions with
//     the pre-extracted images in page order
//  4. heuristic caption scan over page text lines
//  5. flush of still-unpaired images as caption-less figure records
//
// PDF access and structural parsing are injected capabilities (OpenFunc,
// StructuralParser); a nil parser degrades to stages 1, 2, 4, 5.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/contentstore"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/record"
)

// Default minimum dimensions for extracted images. Anything smaller is
// treated as a logo or decorative element and dropped.
const (
	defaultMinFigureWidth  = 220
	defaultMinFigureHeight = 160
	defaultMinFigureArea   = 60000
)

// Config holds the ingestion settings.
type Config struct {
	// ReportsDir is the directory scanned (non-recursively) for *.pdf files.
	ReportsDir string

	// MinFigureWidth is the minimum pixel width of a kept image.
	MinFigureWidth int
	// MinFigureHeight is the minimum pixel height of a kept image.
	MinFigureHeight int
	// MinFigureArea is the minimum pixel area of a kept image. Must be at
	// least MinFigureWidth * MinFigureHeight or the config is rejected.
	MinFigureArea int
}

// ConfigFromEnv builds a Config for reportsDir with thresholds taken from
// MIN_FIGURE_WIDTH, MIN_FIGURE_HEIGHT and MIN_FIGURE_AREA. Unset, malformed
// or non-positive values fall back to the defaults.
func ConfigFromEnv(reportsDir string) Config {
	return Config{
		ReportsDir:      reportsDir,
		MinFigureWidth:  envThreshold("MIN_FIGURE_WIDTH", defaultMinFigureWidth),
		MinFigureHeight: envThreshold("MIN_FIGURE_HEIGHT", defaultMinFigureHeight),
		MinFigureArea:   envThreshold("MIN_FIGURE_AREA", defaultMinFigureArea),
	}
}

func envThreshold(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 1 {
		return fallback
	}
	return n
}

func (c Config) validate() error {
	if c.MinFigureWidth < 1 || c.MinFigureHeight < 1 || c.MinFigureArea < 1 {
		return fmt.Errorf("ingest: figure thresholds must be positive (width=%d height=%d area=%d)",
			c.MinFigureWidth, c.MinFigureHeight, c.MinFigureArea)
	}
	if c.MinFigureArea < c.MinFigureWidth*c.MinFigureHeight {
		return fmt.Errorf("ingest: MIN_FIGURE_AREA %d is below MIN_FIGURE_WIDTH*MIN_FIGURE_HEIGHT %d",
			c.MinFigureArea, c.MinFigureWidth*c.MinFigureHeight)
	}
	return nil
}

// Ingestor runs the ingestion pipeline over a reports directory.
type Ingestor struct {
	cfg    Config
	store  *contentstore.Store
	open   OpenFunc
	parser StructuralParser
	met    *metrics.Metrics
	log    *slog.Logger
}

// New validates cfg and constructs an Ingestor. The parser may be nil; the
// content store and open func may not.
func New(cfg Config, store *contentstore.Store, open OpenFunc, parser StructuralParser, met *metrics.Metrics, log *slog.Logger) (*Ingestor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: content store is required")
	}
	if open == nil {
		return nil, fmt.Errorf("ingest: open func is required")
	}
	if met == nil {
		met = metrics.Nop()
	}
	return &Ingestor{cfg: cfg, store: store, open: open, parser: parser, met: met, log: log}, nil
}

// Ingest processes every PDF under the reports directory and returns the
// records of all documents. A document that fails to open is logged and
// skipped; the rest of the corpus still ingests.
func (ing *Ingestor) Ingest(ctx context.Context) ([]record.Record, error) {
	pdfs, err := ing.listPDFs()
	if err != nil {
		return nil, err
	}

	var records []record.Record
	for _, path := range pdfs {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		docID := sanitizeDocID(path)
		recs, err := ing.ingestOne(ctx, path, docID)
		if err != nil {
			ing.log.Error("ingest: document failed",
				slog.String("doc", docID),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		ing.log.Info("ingest: document done",
			slog.String("doc", docID),
			slog.Int("records", len(recs)),
		)
		records = append(records, recs...)
	}
	return records, nil
}

func (ing *Ingestor) listPDFs() ([]string, error) {
	entries, err := os.ReadDir(ing.cfg.ReportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			ing.log.Warn("ingest: reports directory missing", slog.String("dir", ing.cfg.ReportsDir))
			return nil, nil
		}
		return nil, fmt.Errorf("ingest: list reports: %w", err)
	}
	var pdfs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			pdfs = append(pdfs, filepath.Join(ing.cfg.ReportsDir, e.Name()))
		}
	}
	sort.Strings(pdfs)
	return pdfs, nil
}

// sanitizeDocID derives a document identifier from a PDF path: base name
// without extension, with path separators and ".." neutralized so the id is
// safe to embed in artifact file names.
func sanitizeDocID(path string) string {
	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, "\\", "_")
	id = strings.ReplaceAll(id, "..", "_")
	return id
}

func (ing *Ingestor) ingestOne(ctx context.Context, path, docID string) ([]record.Record, error) {
	r, err := ing.open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer r.Close()

	pageImages := ing.preExtractImages(ctx, r, docID)
	figCount := make(map[int]int)
	tabCount := make(map[int]int)

	var records []record.Record
	records = append(records, ing.textChunks(r, docID)...)

	if ing.parser != nil {
		recs, err := ing.structural(ctx, path, docID, pageImages, figCount, tabCount)
		if err != nil {
			ing.log.Warn("ingest: structural parse failed, continuing without it",
				slog.String("doc", docID),
				slog.String("error", err.Error()),
			)
		} else {
			records = append(records, recs...)
		}
	}

	records = append(records, ing.heuristicCaptions(r, docID, figCount, tabCount)...)
	records = append(records, ing.flushUnpaired(docID, pageImages, figCount)...)
	return records, nil
}

// preExtractImages pulls every embedded image, applies the dimension filter
// and content dedup, persists survivors, and returns them queued per page in
// document order for later caption pairing.
func (ing *Ingestor) preExtractImages(ctx context.Context, r Reader, docID string) map[int]*imageQueue {
	out := make(map[int]*imageQueue)
	for page := 1; page <= r.PageCount(); page++ {
		imgs, err := r.PageImages(page)
		if err != nil {
			ing.log.Warn("ingest: image extraction failed",
				slog.String("doc", docID),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			continue
		}
		for idx, img := range imgs {
			ext, ok := ing.passesFilter(img)
			if !ok {
				ing.met.ImagesFiltered.Inc()
				continue
			}
			name := fmt.Sprintf("%s_p%d_f%d.%s", docID, page, idx+1, ext)
			path, created, err := ing.store.PutImage(ctx, name, img.Data, docID, page)
			if err != nil {
				ing.log.Warn("ingest: store image failed",
					slog.String("doc", docID),
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !created {
				ing.met.ImagesDeduplicated.Inc()
				continue
			}
			ing.met.ImagesStored.Inc()
			q, ok := out[page]
			if !ok {
				q = &imageQueue{}
				out[page] = q
			}
			q.push(path)
		}
	}
	return out
}

// passesFilter decodes the image header and applies the minimum dimension
// filter. It returns the file extension to store under (the declared one,
// else the decoded format) and whether the image is kept. Undecodable bytes
// are rejected.
func (ing *Ingestor) passesFilter(img Image) (string, bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return "", false
	}
	if cfg.Width < ing.cfg.MinFigureWidth ||
		cfg.Height < ing.cfg.MinFigureHeight ||
		cfg.Width*cfg.Height < ing.cfg.MinFigureArea {
		return "", false
	}
	ext := img.Ext
	if ext == "" {
		ext = format
	}
	return ext, true
}

// textChunks splits each page's text on blank lines into paragraph records.
// Page and chunk indices are 1-based.
func (ing *Ingestor) textChunks(r Reader, docID string) []record.Record {
	var recs []record.Record
	for page := 1; page <= r.PageCount(); page++ {
		text, err := r.PageText(page)
		if err != nil {
			ing.log.Warn("ingest: text extraction failed",
				slog.String("doc", docID),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			continue
		}
		chunk := 0
		for _, para := range strings.Split(text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			chunk++
			recs = append(recs, record.Record{
				Type: record.TypePDFChunks,
				Text: para,
				Metadata: map[string]any{
					"id":       record.ChunkID(docID, page, chunk),
					"doc":      docID,
					"page":     page,
					"chunk_id": chunk,
				},
			})
		}
	}
	return recs
}

// structural runs the layout parser and converts its elements to records.
// Detected tables are exported as TSV files; figure captions are paired with
// the pre-extracted page images FIFO, falling back to the element's own image
// payload when the queue is empty.
func (ing *Ingestor) structural(ctx context.Context, path, docID string, pageImages map[int]*imageQueue, figCount, tabCount map[int]int) ([]record.Record, error) {
	elements, err := ing.parser.Parse(ctx, path)
	if err != nil {
		return nil, err
	}

	var recs []record.Record
	for _, el := range elements {
		switch {
		case strings.Contains(el.Category, ElementTable):
			tabCount[el.Page]++
			tabID := tabCount[el.Page]
			name := fmt.Sprintf("%s_p%d_t%d.tsv", docID, el.Page, tabID)
			tsvPath, err := ing.store.PutTable(name, strings.ReplaceAll(el.Text, "\t", " "))
			if err != nil {
				ing.log.Warn("ingest: write table export failed",
					slog.String("doc", docID),
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				tsvPath = ""
			}
			meta := map[string]any{
				"id":       record.TableID(docID, el.Page, tabID),
				"doc":      docID,
				"page":     el.Page,
				"table_id": tabID,
			}
			if tsvPath != "" {
				meta["tsv_path"] = tsvPath
			}
			recs = append(recs, record.Record{Type: record.TypeTableExtracts, Text: el.Text, Metadata: meta})

		case strings.Contains(el.Category, ElementFigure) || strings.Contains(el.Category, ElementImage):
			figCount[el.Page]++
			figID := figCount[el.Page]
			imgPath := ""
			if q := pageImages[el.Page]; q != nil {
				imgPath = q.popFront()
			}
			if imgPath == "" && len(el.Image) > 0 {
				imgPath = ing.persistElementImage(ctx, el, docID, figID)
			}
			meta := map[string]any{
				"id":        record.FigureID(docID, el.Page, figID),
				"doc":       docID,
				"page":      el.Page,
				"figure_id": figID,
			}
			if imgPath != "" {
				meta["image_path"] = imgPath
			}
			recs = append(recs, record.Record{Type: record.TypeFigureCaptions, Text: el.Text, Metadata: meta})
		}
	}
	return recs, nil
}

// persistElementImage stores a parser-supplied image payload, subject to the
// same filter and dedup as pre-extracted images. Returns "" when the image
// is filtered, a duplicate, or fails to store.
func (ing *Ingestor) persistElementImage(ctx context.Context, el Element, docID string, figID int) string {
	img := Image{Data: el.Image}
	ext, ok := ing.passesFilter(img)
	if !ok {
		ing.met.ImagesFiltered.Inc()
		return ""
	}
	name := fmt.Sprintf("%s_p%d_f%d.%s", docID, el.Page, figID, ext)
	path, created, err := ing.store.PutImage(ctx, name, el.Image, docID, el.Page)
	if err != nil {
		ing.log.Warn("ingest: store parser image failed",
			slog.String("doc", docID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if !created {
		ing.met.ImagesDeduplicated.Inc()
		return ""
	}
	ing.met.ImagesStored.Inc()
	return path
}

// Caption prefixes recognized by the heuristic scan. The corpus is mostly
// German reports, so the German forms come first.
var (
	figurePrefixes = []string{"abbildung ", "abb.", "figure ", "fig."}
	tablePrefixes  = []string{"tabelle ", "tab.", "table "}
)

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// heuristicCaptions scans every non-empty text line for caption prefixes.
// It shares the per-page counters with the structural stage so identifiers
// keep incrementing across both.
func (ing *Ingestor) heuristicCaptions(r Reader, docID string, figCount, tabCount map[int]int) []record.Record {
	var recs []record.Record
	for page := 1; page <= r.PageCount(); page++ {
		text, err := r.PageText(page)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			low := strings.ToLower(line)
			switch {
			case hasAnyPrefix(low, figurePrefixes):
				figCount[page]++
				figID := figCount[page]
				recs = append(recs, record.Record{
					Type: record.TypeFigureCaptions,
					Text: line,
					Metadata: map[string]any{
						"id":        record.FigureID(docID, page, figID),
						"doc":       docID,
						"page":      page,
						"figure_id": figID,
					},
				})
			case hasAnyPrefix(low, tablePrefixes):
				tabCount[page]++
				tabID := tabCount[page]
				recs = append(recs, record.Record{
					Type: record.TypeTableExtracts,
					Text: line,
					Metadata: map[string]any{
						"id":       record.TableID(docID, page, tabID),
						"doc":      docID,
						"page":     page,
						"table_id": tabID,
					},
				})
			}
		}
	}
	return recs
}

// flushUnpaired emits caption-less figure records for images no caption
// claimed, continuing each page's figure numbering after the captioned ones.
func (ing *Ingestor) flushUnpaired(docID string, pageImages map[int]*imageQueue, figCount map[int]int) []record.Record {
	pages := make([]int, 0, len(pageImages))
	for page := range pageImages {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	var recs []record.Record
	for _, page := range pages {
		q := pageImages[page]
		start := figCount[page]
		n := 0
		for {
			path := q.popFront()
			if path == "" {
				break
			}
			figID := start + 1 + n
			n++
			recs = append(recs, record.Record{
				Type: record.TypeFigureCaptions,
				Text: "",
				Metadata: map[string]any{
					"id":         record.FigureID(docID, page, figID),
					"doc":        docID,
					"page":       page,
					"figure_id":  figID,
					"image_path": path,
				},
			})
		}
		if n > 0 {
			figCount[page] = start + n
		}
	}
	return recs
}

// imageQueue is a FIFO of stored image paths awaiting caption pairing.
type imageQueue struct {
	paths []string
}

func (q *imageQueue) push(path string) {
	q.paths = append(q.paths, path)
}

// popFront removes and returns the oldest path, or "" when empty.
func (q *imageQueue) popFront() string {
	if len(q.paths) == 0 {
		return ""
	}
	p := q.paths[0]
	q.paths = q.paths[1:]
	return p
}
