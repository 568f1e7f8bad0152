package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/mercury/pkg/mlog"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

var logger mlog.Logger = mlog.Nop{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mercury",
	Short: "Mercury - embeddable bitemporal RDF knowledge-graph engine",
	Long: `Mercury is an embeddable knowledge-graph engine: it persists RDF
quads under a bitemporal model and answers SPARQL 1.1 queries and updates
with strict W3C conformance.

This CLI is a thin development shell over the engine, not a server.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("mercury version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(loadCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")

	lvl := mlog.InfoLevel
	switch level {
	case "debug":
		lvl = mlog.DebugLevel
	case "warn":
		lvl = mlog.WarnLevel
	case "error":
		lvl = mlog.ErrorLevel
	}
	logger = mlog.New(mlog.Config{Level: lvl, JSONOutput: jsonOut})
}
