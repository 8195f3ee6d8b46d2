// Package pdfio adapts on-disk PDF files to the page-oriented Reader the
// ingestion pipeline consumes. Text comes from ledongthuc/pdf row extraction;
// embedded images come from pdfcpu's raw image extraction.
package pdfio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/ingest"
)

// paragraphGap is the vertical distance between consecutive text rows above
// which a paragraph break is inserted. PDF user-space units.
const paragraphGap = 30

// Document is an open PDF file.
type Document struct {
	file   *os.File
	reader *pdf.Reader
	// raw holds the full file bytes for pdfcpu, which needs an io.ReadSeeker
	// per extraction call.
	raw   []byte
	pages int
}

// Open opens the PDF at path. The caller must Close the returned Document.
func Open(path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdfio: open %s: %w", path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pdfio: read %s: %w", path, err)
	}
	return &Document{file: f, reader: r, raw: raw, pages: r.NumPage()}, nil
}

// OpenReader opens the PDF at path as an ingest.Reader. This is the OpenFunc
// wired into the pipeline by the CLI.
func OpenReader(path string) (ingest.Reader, error) {
	return Open(path)
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pages }

// PageText extracts the visible text of the given 1-based page. Rows are
// joined with newlines; a blank line is inserted where the vertical gap
// between rows exceeds paragraphGap, approximating paragraph breaks.
func (d *Document) PageText(page int) (string, error) {
	if page < 1 || page > d.pages {
		return "", fmt.Errorf("pdfio: page %d out of range [1, %d]", page, d.pages)
	}
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	rows, err := p.GetTextByRow()
	if err != nil {
		return "", fmt.Errorf("pdfio: page %d text: %w", page, err)
	}

	var b strings.Builder
	var prevPos int64
	for i, row := range rows {
		var line strings.Builder
		for _, word := range row.Content {
			line.WriteString(word.S)
		}
		text := strings.TrimSpace(line.String())
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			// Rows are ordered top to bottom with descending positions.
			if i > 0 && prevPos-row.Position > paragraphGap {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(text)
		prevPos = row.Position
	}
	return b.String(), nil
}

// PageImages extracts the embedded images of the given 1-based page in
// object-number order.
func (d *Document) PageImages(page int) ([]ingest.Image, error) {
	if page < 1 || page > d.pages {
		return nil, fmt.Errorf("pdfio: page %d out of range [1, %d]", page, d.pages)
	}
	pageImages, err := api.ExtractImagesRaw(
		bytes.NewReader(d.raw),
		[]string{strconv.Itoa(page)},
		model.NewDefaultConfiguration(),
	)
	if err != nil {
		return nil, fmt.Errorf("pdfio: page %d images: %w", page, err)
	}

	var out []ingest.Image
	for _, byObj := range pageImages {
		objNrs := make([]int, 0, len(byObj))
		for nr := range byObj {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)
		for _, nr := range objNrs {
			img := byObj[nr]
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, fmt.Errorf("pdfio: page %d image obj %d: %w", page, nr, err)
			}
			out = append(out, ingest.Image{Data: data, Ext: normalizeExt(img.FileType)})
		}
	}
	return out, nil
}

// normalizeExt maps pdfcpu file types to the extensions used for artifact
// names.
func normalizeExt(fileType string) string {
	ext := strings.ToLower(strings.TrimPrefix(fileType, "."))
	switch ext {
	case "jpeg":
		return "jpg"
	case "":
		return "png"
	default:
		return ext
	}
}

// Close releases the underlying file handle.
func (d *Document) Close() error {
	return d.file.Close()
}
