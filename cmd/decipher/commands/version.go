package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/version"
)

// NewVersionCmd constructs the 'version' subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("decipher %s (commit %s)\n", version.Version, version.Commit)
		},
	}
}
