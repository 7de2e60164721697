package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupMaxAge time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover clone working directories",
	Long: `Deletes working directories under the clone temp root older than the
cutoff. Covers trees orphaned by killed workers; normal runs clean up
after themselves.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge := cleanupMaxAge
		if maxAge == 0 {
			maxAge = cfg.Scan.CleanupMaxAge
		}
		removed, err := newCloner().CleanupOld(maxAge)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d stale working director(ies)\n", removed)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 0, "age cutoff (default from config)")
}
