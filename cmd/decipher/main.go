// Command decipher is the entry point for the energy-scenario document
// pipeline: it ingests PDF reports and extracted CSV datasets into vector
// collections and answers retrieval queries over them.
package main

import (
	"fmt"
	"os"

	"github.com/sweet-cross/decipher-energy-scenarios/cmd/decipher/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
