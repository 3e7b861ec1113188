package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slicectl",
	Short: "slicectl serves bounded, ranked slices of a code symbol graph",
	Long: `slicectl builds a slicecore graph from a YAML fixture store, runs
the beam search engine against a request, and prints
the resulting GraphSlice — the same shape an agent-facing service would
return over its transport.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.SetVersionTemplate("slicectl version {{.Version}}\n")
}
