package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/contentstore"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/record"
)

// fakePage is one page of a fakeReader.
type fakePage struct {
	text   string
	images []Image
}

type fakeReader struct {
	pages []fakePage
}

func (f *fakeReader) PageCount() int { return len(f.pages) }

func (f *fakeReader) PageText(page int) (string, error) {
	return f.pages[page-1].text, nil
}

func (f *fakeReader) PageImages(page int) ([]Image, error) {
	return f.pages[page-1].images, nil
}

func (f *fakeReader) Close() error { return nil }

// fakeOpener maps file paths to canned readers. Paths not in the map fail.
type fakeOpener map[string]*fakeReader

func (f fakeOpener) open(path string) (Reader, error) {
	r, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("no reader for %s", path)
	}
	return r, nil
}

type fakeParser struct {
	elements []Element
	err      error
}

func (f *fakeParser) Parse(_ context.Context, _ string) ([]Element, error) {
	return f.elements, f.err
}

// pngBytes encodes a solid image of the given size. The seed varies pixel
// content so different seeds produce different bytes.
func pngBytes(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestIngestor wires an Ingestor around a temp content store, one PDF
// entry in a temp reports dir per reader, and the given parser.
func newTestIngestor(t *testing.T, readers map[string]*fakeReader, parser StructuralParser) (*Ingestor, *contentstore.Store) {
	t.Helper()
	reportsDir := t.TempDir()
	opener := fakeOpener{}
	for name, r := range readers {
		path := filepath.Join(reportsDir, name)
		if err := os.WriteFile(path, []byte("%PDF-fake"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		opener[path] = r
	}

	store, err := contentstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("contentstore.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := Config{ReportsDir: reportsDir, MinFigureWidth: 220, MinFigureHeight: 160, MinFigureArea: 60000}
	ing, err := New(cfg, store, opener.open, parser, metrics.Nop(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ing, store
}

func byType(recs []record.Record, typ string) []record.Record {
	var out []record.Record
	for _, r := range recs {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	store, err := contentstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("contentstore.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	open := func(string) (Reader, error) { return nil, nil }

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid defaults", Config{ReportsDir: ".", MinFigureWidth: 220, MinFigureHeight: 160, MinFigureArea: 60000}, false},
		{"zero width", Config{ReportsDir: ".", MinFigureWidth: 0, MinFigureHeight: 160, MinFigureArea: 60000}, true},
		{"area below width*height", Config{ReportsDir: ".", MinFigureWidth: 300, MinFigureHeight: 300, MinFigureArea: 60000}, true},
		{"area exactly width*height", Config{ReportsDir: ".", MinFigureWidth: 200, MinFigureHeight: 300, MinFigureArea: 60000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, store, open, nil, metrics.Nop(), testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTextChunking(t *testing.T) {
	t.Parallel()

	ing, _ := newTestIngestor(t, map[string]*fakeReader{
		"report.pdf": {pages: []fakePage{
			{text: "First paragraph.\n\nSecond paragraph.\n\n\n\n  \n\nThird."},
			{text: ""},
			{text: "Only one here."},
		}},
	}, nil)

	recs, err := ing.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	chunks := byType(recs, record.TypePDFChunks)
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	if got := chunks[0].ID(); got != "report::p1::c1" {
		t.Errorf("first chunk id = %q", got)
	}
	if got := chunks[2].ID(); got != "report::p1::c3" {
		t.Errorf("third chunk id = %q", got)
	}
	// Page 2 is empty, so page 3 starts its own chunk numbering.
	if got := chunks[3].ID(); got != "report::p3::c1" {
		t.Errorf("page 3 chunk id = %q", got)
	}
	if chunks[2].Text != "Third." {
		t.Errorf("chunk text = %q, want %q", chunks[2].Text, "Third.")
	}
}

func TestImageDedupAcrossDocuments(t *testing.T) {
	t.Parallel()

	shared := pngBytes(t, 300, 220, 1)
	ing, store := newTestIngestor(t, map[string]*fakeReader{
		"a.pdf": {pages: []fakePage{{images: []Image{{Data: shared, Ext: "png"}}}}},
		"b.pdf": {pages: []fakePage{{images: []Image{{Data: shared, Ext: "png"}}}}},
	}, nil)

	recs, err := ing.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	entries, err := os.ReadDir(store.FigureDir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("figure dir has %d files, want 1", len(entries))
	}
	// Only the document that stored the image emits a figure record for it.
	figs := byType(recs, record.TypeFigureCaptions)
	if len(figs) != 1 {
		t.Errorf("got %d figure records, want 1", len(figs))
	}
}

func TestSmallImagesFiltered(t *testing.T) {
	t.Parallel()

	ing, store := newTestIngestor(t, map[string]*fakeReader{
		"report.pdf": {pages: []fakePage{{images: []Image{
			{Data: pngBytes(t, 100, 100, 1), Ext: "png"}, // below width and height
			{Data: pngBytes(t, 300, 100, 2), Ext: "png"}, // below height
			{Data: []byte("not an image"), Ext: "png"},   // undecodable
		}}}},
	}, nil)

	recs, err := ing.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	entries, err := os.ReadDir(store.FigureDir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("figure dir has %d files, want 0", len(entries))
	}
	if figs := byType(recs, record.TypeFigureCaptions); len(figs) != 0 {
		t.Errorf("got %d figure records, want 0", len(figs))
	}
}

func TestUnpairedImagesFlushed(t *testing.T) {
	t.Parallel()

	ing, _ := newTestIngestor(t, map[string]*fakeReader{
		"report.pdf": {pages: []fakePage{{
			text: "No captions on this page.",
			images: []Image{
				{Data: pngBytes(t, 300, 220, 1), Ext: "png"},
				{Data: pngBytes(t, 300, 220, 2), Ext: "png"},
				{Data: pngBytes(t, 300, 220, 3), Ext: "png"},
			},
		}}},
	}, nil)

	recs, err := ing.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	figs := byType(recs, record.TypeFigureCaptions)
	if len(figs) != 3 {
		t.Fatalf("got %d figure records, want 3", len(figs))
	}
	seen := make(map[string]bool)
	for i, f := range figs {
		if f.Text != "" {
			t.Errorf("flushed figure %d has text %q, want empty", i, f.Text)
		}
		wantID := fmt.Sprintf("report::p1::fig%d", i+1)
		if f.ID() != wantID {
			t.Errorf("figure id = %q, want %q", f.ID(), wantID)
		}
		path, _ := f.Metadata["image_path"].(string)
		if path == "" {
			t.Errorf("figure %d missing image_path", i)
		}
		if seen[path] {
			t.Errorf("duplicate image_path %q", path)
		}
		seen[path] = true
	}
}

func TestHeuristicCaptions(t *testing.T) {
	t.Parallel()

	ing, _ := newTestIngestor(t, map[string]*fakeReader{
		"report.pdf": {pages: []fakePage{{
			text: "Abbildung 3: Stromnachfrage bis 2050 in TWh\n" +
				"Some body text that is not a caption.\n" +
				"Tabelle 1: Installierte Leistung nach Szenario\n" +
				"Figure 2: Electricity demand\n" +
				"Table 4: Capacity by scenario",
		}}},
	}, nil)

	recs, err := ing.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	figs := byType(recs, record.TypeFigureCaptions)
	if len(figs) != 2 {
		t.Fatalf("got %d figure captions, want 2", len(figs))
	}
	if figs[0].Text != "Abbildung 3: Stromnachfrage bis 2050 in TWh" {
		t.Errorf("first caption = %q", figs[0].Text)
	}
	if figs[0].ID() != "report::p1::fig1" || figs[1].ID() != "report::p1::fig2" {
		t.Errorf("caption ids = %q, %q", figs[0].ID(), figs[1].ID())
	}

	tabs := byType(recs, record.TypeTableExtracts)
	if len(tabs) != 2 {
		t.Fatalf("got %d table extracts, want 2", len(tabs))
	}
	if tabs[0].Metadata["table_id"] != 1 || tabs[1].Metadata["table_id"] != 2 {
		t.Errorf("table ids = %v, %v", tabs[0].Metadata["table_id"], tabs[1].Metadata["table_id"])
	}
}

func TestStructuralPairingAndTSV(t *testing.T) {
	t.Parallel()

	parser := &fakeParser{elements: []Element{
		{Category: ElementTable, Page: 1, Text: "year\tvalue\n2030\t612.4"},
		{Category: ElementFigure, Page: 1, Text: "Installed capacity by scenario"},
		{Category: ElementFigure, Page: 1, Text: "Demand trajectory"},
	}}
	ing, store := newTestIngestor(t, map[string]*fakeReader{
		"report.pdf": {pages: []fakePage{{
			images: []Image{{Data: pngBytes(t, 300, 220, 1), Ext: "png"}},
		}}},
	}, parser)

	recs, err := ing.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	tabs := byType(recs, record.TypeTableExtracts)
	if len(tabs) != 1 {
		t.Fatalf("got %d table extracts, want 1", len(tabs))
	}
	tsvPath, _ := tabs[0].Metadata["tsv_path"].(string)
	if tsvPath == "" {
		t.Fatal("table record missing tsv_path")
	}
	if filepath.Dir(tsvPath) != store.TableDir() {
		t.Errorf("tsv written to %q, want under %q", tsvPath, store.TableDir())
	}
	data, err := os.ReadFile(tsvPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	// Tabs inside table text are flattened to spaces in the export.
	if string(data) != "year value\n2030 612.4" {
		t.Errorf("tsv content = %q", data)
	}

	figs := byType(recs, record.TypeFigureCaptions)
	if len(figs) != 2 {
		t.Fatalf("got %d figure captions, want 2", len(figs))
	}
	// FIFO pairing: the first caption gets the page's only stored image,
	// the second gets none.
	if p, _ := figs[0].Metadata["image_path"].(string); p == "" {
		t.Error("first figure missing image_path")
	}
	if _, ok := figs[1].Metadata["image_path"]; ok {
		t.Error("second figure should not carry image_path")
	}
}

func TestStructuralParseFailureDegrades(t *testing.T) {
	t.Parallel()

	parser := &fakeParser{err: fmt.Errorf("service unavailable")}
	ing, _ := newTestIngestor(t, map[string]*fakeReader{
		"report.pdf": {pages: []fakePage{{text: "Abbildung 1: Netzausbau"}}},
	}, parser)

	recs, err := ing.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	// Heuristic stage still runs.
	if figs := byType(recs, record.TypeFigureCaptions); len(figs) != 1 {
		t.Errorf("got %d figure captions, want 1", len(figs))
	}
}

func TestSanitizeDocID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/data/reports/ep2050plus.pdf", "ep2050plus"},
		{"/data/reports/report..v2.pdf", "report_v2"},
		{"/data/reports/Energie Perspektiven.PDF", "Energie Perspektiven"},
	}
	for _, tt := range tests {
		if got := sanitizeDocID(tt.path); got != tt.want {
			t.Errorf("sanitizeDocID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
