// Package catalog discovers extracted CSV datasets and summarizes each one
// into a compact "dataset card" suitable for indexing. Cards are built from
// a bounded head sample of each file so cataloging stays cheap even for
// multi-megabyte scenario exports.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/record"
)

// maxSniffRows bounds how many data rows are read per CSV when collecting
// distinct units. The header row does not count toward the limit.
const maxSniffRows = 100

// Dataset categories, matching the extraction directory layout under the
// data root.
const (
	CategorySynthesis      = "synthesis"
	CategoryTransformation = "transformation"
)

// Card is a one-line description of a dataset: its identity, location,
// column schema, and the distinct measurement units found in a head sample.
type Card struct {
	// DatasetID is the file base name without the .csv extension.
	DatasetID string
	// Path is the absolute path of the CSV file.
	Path string
	// Category is the dataset category (synthesis or transformation).
	Category string
	// Schema lists the header columns in file order. Empty when the file
	// could not be parsed.
	Schema []string
	// Units lists the distinct non-empty values of the "unit" column in
	// first-seen order. Empty when there is no such column.
	Units []string
}

// Catalog scans the extraction directories for CSV datasets.
type Catalog struct {
	synthDir string
	transDir string
	log      *slog.Logger
}

// New returns a Catalog rooted at dataRoot, expecting the extraction layout
// dataRoot/extracted/{synthesis,transformation}.
func New(dataRoot string, log *slog.Logger) *Catalog {
	return &Catalog{
		synthDir: filepath.Join(dataRoot, "extracted", CategorySynthesis),
		transDir: filepath.Join(dataRoot, "extracted", CategoryTransformation),
		log:      log,
	}
}

// ListCSVs returns the CSV files found per category. A missing category
// directory yields an empty list, not an error. Non-CSV files are ignored;
// the extension match is case-insensitive.
func (c *Catalog) ListCSVs() map[string][]string {
	out := map[string][]string{
		CategorySynthesis:      c.listDir(c.synthDir),
		CategoryTransformation: c.listDir(c.transDir),
	}
	return out
}

func (c *Catalog) listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.log.Debug("catalog: directory unavailable", slog.String("dir", dir), slog.String("error", err.Error()))
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}

// BuildCards sniffs every discovered CSV and returns one Card per file.
// Files that fail to parse still produce a card with empty schema and units,
// so a single corrupt export never hides the rest of the catalog.
func (c *Catalog) BuildCards() []Card {
	var cards []Card
	for _, category := range []string{CategorySynthesis, CategoryTransformation} {
		for _, path := range c.ListCSVs()[category] {
			card := Card{
				DatasetID: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				Path:      path,
				Category:  category,
			}
			schema, units, err := sniffCSV(path)
			if err != nil {
				c.log.Warn("catalog: sniff failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			} else {
				card.Schema = schema
				card.Units = units
			}
			cards = append(cards, card)
		}
	}
	return cards
}

// sniffCSV reads the header and up to maxSniffRows data rows, returning the
// column schema and the distinct values of the "unit" column (if present).
func sniffCSV(path string) ([]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	schema := make([]string, len(header))
	for i, col := range header {
		schema[i] = strings.TrimSpace(col)
	}

	unitCol := -1
	for i, col := range schema {
		if strings.EqualFold(col, "unit") {
			unitCol = i
			break
		}
	}

	var units []string
	if unitCol >= 0 {
		seen := make(map[string]bool)
		for n := 0; n < maxSniffRows; n++ {
			row, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				// Keep what we have; a malformed row mid-file should not
				// discard the units already collected.
				break
			}
			if unitCol >= len(row) {
				continue
			}
			u := strings.TrimSpace(row[unitCol])
			if u != "" && !seen[u] {
				seen[u] = true
				units = append(units, u)
			}
		}
	}

	return schema, units, nil
}

// ToRecords converts cards to indexable dataset_cards records. The record
// text packs identity, category, schema, and units into a single searchable
// line.
func (c *Catalog) ToRecords(cards []Card) []record.Record {
	records := make([]record.Record, 0, len(cards))
	for _, card := range cards {
		text := fmt.Sprintf("%s | %s | schema: %s | units: %s",
			card.DatasetID,
			card.Category,
			strings.Join(card.Schema, ", "),
			strings.Join(card.Units, ", "),
		)
		records = append(records, record.Record{
			Type: record.TypeDatasetCards,
			Text: text,
			Metadata: map[string]any{
				"id":         card.DatasetID,
				"dataset_id": card.DatasetID,
				"path":       card.Path,
				"category":   card.Category,
				"schema":     strings.Join(card.Schema, ","),
				"units":      strings.Join(card.Units, ","),
			},
		})
	}
	return records
}
