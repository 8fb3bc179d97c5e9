package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/disktree/pkg/planner"
)

var compareCmd = &cobra.Command{
	Use:   "compare URI SCAN_A SCAN_B",
	Short: "Diff the children of URI between two scans",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, err := mustURI(args[0])
		if err != nil {
			return err
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

		result, err := planner.New(cat, blobs).Compare(uri, args[1], args[2])
		if err != nil {
			return err
		}

		fmt.Printf("%-8s %-40s %12s %12s %12s\n", "STATUS", "PATH", "SIZE BEFORE", "SIZE AFTER", "DELTA")
		for _, row := range result.Rows {
			if row.Status == "unchanged" {
				continue
			}
			delta := formatBytes(row.SizeDelta)
			if row.SizeDelta > 0 {
				delta = "+" + delta
			}
			fmt.Printf("%-8s %-40s %12s %12s %12s\n",
				row.Status, truncate(row.Path, 40), formatBytes(row.SizeOld), formatBytes(row.SizeNew), delta)
		}
		fmt.Printf("\ntotal delta: %s\n", formatBytes(result.TotalDelta))
		return nil
	},
}
