// Package build orchestrates a full index build: PDF ingestion, dataset
// cataloging, and upserts into the vector collections, with optional reset
// of previously indexed state.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/catalog"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/contentstore"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/index"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/ingest"
)

// Summary reports per-stage counts of a build run so partial failures stay
// observable even though they never abort the run.
type Summary struct {
	// PDFRecords is the number of records produced by ingestion.
	PDFRecords int
	// DatasetCards is the number of dataset cards cataloged.
	DatasetCards int
	// Counts is the final point count per collection.
	Counts map[string]uint64
}

// Builder runs the build pipeline.
type Builder struct {
	indexer  *index.Indexer
	ingestor *ingest.Ingestor
	catalog  *catalog.Catalog
	log      *slog.Logger
}

// New constructs a Builder. The ingestor or catalog may be nil to skip that
// stage.
func New(indexer *index.Indexer, ingestor *ingest.Ingestor, cat *catalog.Catalog, log *slog.Logger) *Builder {
	return &Builder{indexer: indexer, ingestor: ingestor, catalog: cat, log: log}
}

// Run executes the build. With reset, every collection is dropped first;
// fresh implies reset and is expected to be combined with FreshClean by the
// caller before artifacts are written.
func (b *Builder) Run(ctx context.Context, reset bool) (*Summary, error) {
	if reset {
		for _, name := range b.indexer.Collections() {
			if err := b.indexer.ResetCollection(ctx, name); err != nil {
				return nil, fmt.Errorf("build: reset %q: %w", name, err)
			}
		}
		b.log.Info("build: collections reset")
	}
	if err := b.indexer.EnsureCollections(ctx); err != nil {
		return nil, fmt.Errorf("build: ensure collections: %w", err)
	}

	summary := &Summary{}

	if b.ingestor != nil {
		records, err := b.ingestor.Ingest(ctx)
		if err != nil {
			return nil, fmt.Errorf("build: ingest: %w", err)
		}
		if err := b.indexer.UpsertRecords(ctx, records); err != nil {
			return nil, err
		}
		summary.PDFRecords = len(records)
		b.log.Info("build: ingestion stage done", slog.Int("records", len(records)))
	}

	if b.catalog != nil {
		cards := b.catalog.BuildCards()
		if err := b.indexer.UpsertRecords(ctx, b.catalog.ToRecords(cards)); err != nil {
			return nil, err
		}
		summary.DatasetCards = len(cards)
		b.log.Info("build: catalog stage done", slog.Int("cards", len(cards)))
	}

	summary.Counts = b.indexer.Stats(ctx)
	return summary, nil
}

// FreshClean removes previously written artifacts (figures/, tables/, and
// the hash manifest) under outputDir after validating the path is safe to
// delete from. Call before opening the content store of a fresh run.
func FreshClean(outputDir string, log *slog.Logger) error {
	if err := guardDeletePath(outputDir); err != nil {
		return err
	}
	targets := []string{
		filepath.Join(outputDir, "figures"),
		filepath.Join(outputDir, "tables"),
		filepath.Join(outputDir, contentstore.ManifestName),
	}
	for _, target := range targets {
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("build: clean %s: %w", target, err)
		}
	}
	log.Info("build: previous artifacts removed", slog.String("dir", outputDir))
	return nil
}

// guardDeletePath rejects output paths whose deletion would be catastrophic:
// the filesystem root, the user's home directory, and anything shallower
// than three path components.
func guardDeletePath(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("build: resolve %s: %w", dir, err)
	}
	abs = filepath.Clean(abs)

	if abs == string(filepath.Separator) {
		return fmt.Errorf("build: refusing to clean filesystem root")
	}
	if home, err := os.UserHomeDir(); err == nil && abs == filepath.Clean(home) {
		return fmt.Errorf("build: refusing to clean home directory %s", abs)
	}

	parts := strings.Split(strings.Trim(abs, string(filepath.Separator)), string(filepath.Separator))
	if len(parts) < 3 {
		return fmt.Errorf("build: refusing to clean shallow path %s (need at least 3 components)", abs)
	}
	return nil
}
