package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune superseded scans past the retention window and scans marked needs_repair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		retention, _ := cmd.Flags().GetDuration("retention")
		if retention <= 0 {
			retention = cfg.GCRetention
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()
		blobs, err := openBlobs()
		if err != nil {
			return err
		}

		pruned, err := cat.GC(blobs, retention)
		if err != nil {
			return err
		}
		fmt.Printf("gc: pruned %d scan(s) (retention %s)\n", pruned, retention)
		return nil
	},
}

func init() {
	gcCmd.Flags().Duration("retention", 0, "retention window (defaults to the configured gc_retention)")
}

// runGCBestEffort is called opportunistically after a scan completes
// (spec.md §3: eviction keeps the most recent snapshot per root_uri
// plus a configurable retention window). Failures are logged, not
// fatal — gc is also reachable on demand via the gc subcommand.
func runGCBestEffort() {
	cat, err := openCatalog()
	if err != nil {
		return
	}
	defer cat.Close()
	blobs, err := openBlobs()
	if err != nil {
		return
	}
	if _, err := cat.GC(blobs, cfg.GCRetention); err != nil {
		fmt.Fprintf(os.Stderr, "gc: %v\n", err)
	}
}
