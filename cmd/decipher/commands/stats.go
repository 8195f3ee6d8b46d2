package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/embedder"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/index"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/logging"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
)

// NewStatsCmd constructs the 'stats' subcommand, printing per-collection
// point counts.
func NewStatsCmd() *cobra.Command {
	var storeName string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-collection point counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			store, err := newStore(storeName, log)
			if err != nil {
				return err
			}
			defer store.Close()

			indexer := index.New(store, nil, embedder.DefaultDimensions(), metrics.Nop(), log)
			counts := indexer.Stats(cmd.Context())
			for _, name := range indexer.Collections() {
				fmt.Printf("%-18s %d\n", name, counts[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storeName, "store", "", "Vector store backend: qdrant or memory (default: $STORE_BACKEND or qdrant)")

	return cmd
}
