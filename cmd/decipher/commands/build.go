package commands

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/build"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/catalog"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/contentstore"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/embedder"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/index"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/ingest"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/logging"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/pdfio"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/unstructured"
)

// NewBuildCmd constructs the 'build' subcommand: a full ingestion and
// indexing run over the reports directory and the extracted CSV datasets.
func NewBuildCmd() *cobra.Command {
	var (
		reportsDir string
		dataRoot   string
		outputDir  string
		storeName  string
		reset      bool
		fresh      bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Ingest reports and datasets, then (re)build the index",
		Long: `Build runs the full pipeline: PDF ingestion (text chunks, figure
captions, table extracts), dataset cataloging, and upserts into the vector
collections.

--reset drops and recreates the collections before indexing.
--fresh additionally deletes previously extracted artifacts (figures,
tables, image hash manifest) before ingesting; it implies --reset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := cmd.Context()

			if dataRoot == "" {
				dataRoot = getEnvOrDefault("DATA_ROOT", "data")
			}
			if reportsDir == "" {
				reportsDir = getEnvOrDefault("REPORTS_DIR", filepath.Join(dataRoot, "reports"))
			}
			if outputDir == "" {
				outputDir = getEnvOrDefault("OUTPUT_DIR", filepath.Join(dataRoot, "ingest"))
			}
			absOutput, err := filepath.Abs(outputDir)
			if err != nil {
				return fmt.Errorf("resolve output dir: %w", err)
			}

			if fresh {
				reset = true
				if err := build.FreshClean(absOutput, log); err != nil {
					return err
				}
			}

			if err := embedder.ValidateFromEnv(log); err != nil {
				return err
			}
			emb, err := embedder.NewFromEnv(log)
			if err != nil {
				return err
			}

			store, err := newStore(storeName, log)
			if err != nil {
				return err
			}
			defer store.Close()

			content, err := contentstore.Open(absOutput)
			if err != nil {
				return err
			}
			defer content.Close()

			// A nil *unstructured.Client must stay a nil interface, not a
			// typed nil, or the pipeline would call through it.
			var parser ingest.StructuralParser
			if c := unstructured.NewFromEnv(log); c != nil {
				parser = c
			}

			met := metrics.New(prometheus.DefaultRegisterer)
			ingestor, err := ingest.New(ingest.ConfigFromEnv(reportsDir), content, pdfio.OpenReader, parser, met, log)
			if err != nil {
				return err
			}
			indexer := index.New(store, emb, embedder.DefaultDimensions(), met, log)
			cat := catalog.New(dataRoot, log)

			summary, err := build.New(indexer, ingestor, cat, log).Run(ctx, reset)
			if err != nil {
				return err
			}

			fmt.Printf("ingested %d PDF records, cataloged %d datasets\n", summary.PDFRecords, summary.DatasetCards)
			for _, name := range indexer.Collections() {
				fmt.Printf("  %-18s %d\n", name, summary.Counts[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportsDir, "reports", "", "Directory containing *.pdf reports (default: $REPORTS_DIR or <data-root>/reports)")
	cmd.Flags().StringVar(&dataRoot, "data-root", "", "Data root containing extracted datasets (default: $DATA_ROOT or data)")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output root for extracted artifacts (default: $OUTPUT_DIR or <data-root>/ingest)")
	cmd.Flags().StringVar(&storeName, "store", "", "Vector store backend: qdrant or memory (default: $STORE_BACKEND or qdrant)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the collections before indexing")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Delete previously extracted artifacts first (implies --reset)")

	return cmd
}
