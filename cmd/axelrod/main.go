package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "axelrod",
		Short: "Axelrod cultural dissemination simulations",
		Long: `axelrod runs Axelrod's model of cultural dissemination on an N x N grid.

Agents hold one value per cultural feature and interact with a random
von Neumann neighbour with probability proportional to their similarity.
Trajectories run until no neighbouring pair can interact, or until the
step budget is spent. Case-study sweeps run many seeded trajectories in
parallel and store their results in ~/.axelrod/results.db.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.axelrod/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newResultsCmd(),
		newTemplatesCmd(),
		newConfigCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}
