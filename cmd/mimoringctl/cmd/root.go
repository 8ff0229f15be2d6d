// Package cmd implements the mimoringctl command-line tool: create a
// shared-memory buffer, run a synthetic producer/consumer demo against one,
// or attach to a running buffer and watch its live stats.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mimoringctl",
	Short: "mimoringctl creates and drives mimoring shared-memory ring buffers",
	Long: `mimoringctl creates and drives mimoring shared-memory ring buffers.

It is a thin operator's tool around the mimoring library: "create" allocates
a named buffer for other processes to attach to, "demo" runs a self-contained
producer/consumer pipeline against an in-process buffer with a live stats
dashboard, and "stats" attaches to an existing shared buffer to watch it.`,
}

func init() {
	cobra.OnInitialize()
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
