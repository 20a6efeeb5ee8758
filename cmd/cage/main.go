// Command cage runs mouse cage games between player scripts.
//
// Games run to completion from the command line (run), or live with
// websocket spectators (serve). Games recorded to SQLite can be listed
// (games) and replayed (replay) afterwards.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cage",
		Short: "Mouse cage - a population game between player scripts",
		Long: `cage simulates a population of mice whose decisions are made by
player scripts. Each mouse asks its owners whom to fight, whom to court and
whether to accept a suitor. The player whose code takes over every mouse wins.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "YAML config file (defaults are embedded)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace or warn")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newServeCmd(),
		newWatchCmd(),
		// Recorded games
		newGamesCmd(),
		newReplayCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cage version %s\n", version)
		},
	}
}
