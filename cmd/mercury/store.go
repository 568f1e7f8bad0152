package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/mercury/pkg/mpool"
	"github.com/cuemby/mercury/pkg/mstore"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage a Mercury store directory",
}

var storeOpenCmd = &cobra.Command{
	Use:   "open <dir>",
	Short: "Open (creating if absent) a store directory and report its name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		s, err := mstore.Open(args[0], name, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()
		fmt.Printf("opened store %q at %s\n", name, args[0])
		return nil
	},
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats <dir>",
	Short: "Print quad/atom counts, on-disk size and WAL watermarks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		s, err := mstore.Open(args[0], name, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		stats, err := s.GetStatistics()
		if err != nil {
			return fmt.Errorf("get statistics: %w", err)
		}
		wal, err := s.WALStatistics()
		if err != nil {
			return fmt.Errorf("get wal statistics: %w", err)
		}

		fmt.Printf("quads:           %d\n", stats.QuadsTotal)
		fmt.Printf("atoms:           %d\n", stats.AtomsTotal)
		fmt.Printf("store bytes:     %d\n", stats.StoreBytes)
		fmt.Printf("wal last tx:     %d\n", wal.LastTxID)
		fmt.Printf("wal checkpoint:  %d\n", wal.CheckpointTxID)
		fmt.Printf("wal bytes:       %d\n", wal.SizeBytes)
		return nil
	},
}

var storePruneCmd = &cobra.Command{
	Use:   "prune <pool-dir>",
	Short: "Drop historical versions from a pooled store per a history-retention mode",
	Long: `prune rents the named store under pool-dir (§5's store pool), scans its
history under a retention mode, and — unless the compaction is empty or
--dry-run is set — writes survivors into a new staging store and atomically
switches the pool's active handle to it, leaving the original directory
untouched on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		modeFlag, _ := cmd.Flags().GetString("mode")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		now, _ := cmd.Flags().GetInt64("now")

		mode, err := parseHistoryMode(modeFlag)
		if err != nil {
			return err
		}

		p := mpool.New(args[0], logger)
		defer p.CloseAll()
		if _, err := p.Rent(name); err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if err := p.Switch(name, name); err != nil {
			return fmt.Errorf("activate store: %w", err)
		}

		result, err := mpool.Prune(p, name, mpool.PruneOptions{Mode: mode, Now: now, DryRun: dryRun})
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		fmt.Printf("scanned: %d\n", result.Scanned)
		fmt.Printf("dropped: %d\n", result.Dropped)
		switch {
		case dryRun:
			fmt.Println("(dry run, no changes written)")
		case result.Dropped == 0:
			fmt.Println("(nothing to compact)")
		default:
			fmt.Printf("compacted into a staging store and switched %q active\n", name)
		}
		return nil
	},
}

func parseHistoryMode(s string) (mpool.HistoryMode, error) {
	switch s {
	case "", "preserve-versions":
		return mpool.PreserveVersions, nil
	case "flatten-to-current":
		return mpool.FlattenToCurrent, nil
	case "preserve-all":
		return mpool.PreserveAll, nil
	default:
		return 0, fmt.Errorf("unknown prune mode %q (want flatten-to-current, preserve-versions, or preserve-all)", s)
	}
}

func init() {
	for _, c := range []*cobra.Command{storeOpenCmd, storeStatsCmd, storePruneCmd} {
		c.Flags().String("name", "default", "Store slot name")
	}
	storePruneCmd.Flags().String("mode", "preserve-versions", "History retention mode: flatten-to-current, preserve-versions, preserve-all")
	storePruneCmd.Flags().Bool("dry-run", false, "Report what would be dropped without writing changes")
	storePruneCmd.Flags().Int64("now", 0, "Transaction-time instant to prune as of (unix nanoseconds)")

	storeCmd.AddCommand(storeOpenCmd, storeStatsCmd, storePruneCmd)
}
