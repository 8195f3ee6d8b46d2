package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/embedder"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/logging"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/metrics"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/retrieve"
)

// snippetLen bounds how much hit text is printed per result.
const snippetLen = 160

// NewSearchCmd constructs the 'search' subcommand.
func NewSearchCmd() *cobra.Command {
	var (
		mode      string
		topK      int
		storeName string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the indexed collections",
		Long: `Search runs a retrieval query. Mode 'pdf' fuses results across text
chunks, figure captions and table extracts; mode 'datasets' searches the
dataset cards. Without an embedding backend the search degrades to lexical
matching and all scores are 0.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := cmd.Context()
			query := args[0]

			emb, err := embedder.NewFromEnv(log)
			if err != nil {
				return err
			}
			store, err := newStore(storeName, log)
			if err != nil {
				return err
			}
			defer store.Close()

			r := retrieve.New(store, emb, metrics.Nop(), log)

			var hits []retrieve.Hit
			switch mode {
			case "pdf":
				hits, err = r.SearchPDF(ctx, query, topK)
			case "datasets":
				hits, err = r.SearchDatasets(ctx, query, topK)
			default:
				return fmt.Errorf("unknown mode %q — valid values: pdf, datasets", mode)
			}
			if err != nil {
				return err
			}

			if len(hits) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, h := range hits {
				fmt.Printf("%2d. [%.3f] %s  %s\n", i+1, h.Score, h.Type, formatCitation(h.Citation))
				fmt.Printf("    %s\n", snippet(h.Text))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "pdf", "Search mode: pdf or datasets")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of results (default: 6 for pdf, 5 for datasets)")
	cmd.Flags().StringVar(&storeName, "store", "", "Vector store backend: qdrant or memory (default: $STORE_BACKEND or qdrant)")

	return cmd
}

// formatCitation renders a citation as doc:pN[:figN|:tabN], or just the
// dataset id for dataset hits.
func formatCitation(c retrieve.Citation) string {
	if c.Doc == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(c.Doc)
	if c.Page > 0 {
		fmt.Fprintf(&b, ":p%d", c.Page)
	}
	if c.FigureID > 0 {
		fmt.Fprintf(&b, ":fig%d", c.FigureID)
	}
	if c.TableID > 0 {
		fmt.Fprintf(&b, ":tab%d", c.TableID)
	}
	return b.String()
}

// snippet collapses whitespace and truncates text for terminal display.
func snippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) > snippetLen {
		s = s[:snippetLen] + "…"
	}
	return s
}
