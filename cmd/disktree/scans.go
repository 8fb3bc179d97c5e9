package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List completed scans and currently running jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		running, _ := cmd.Flags().GetBool("running")
		if running {
			rows, err := cat.ListProgress()
			if err != nil {
				return err
			}
			fmt.Printf("%-36s %-10s %-40s %10s %8s\n", "JOB ID", "STATUS", "ROOT", "ITEMS", "ERRORS")
			for _, p := range rows {
				fmt.Printf("%-36s %-10s %-40s %10d %8d\n", p.ID, p.Status, truncate(string(p.RootURI), 40), p.ItemsFound, p.ErrorCount)
			}
			return nil
		}

		recs, err := cat.ListScans()
		if err != nil {
			return err
		}
		fmt.Printf("%-36s %-40s %19s %12s %8s\n", "SCAN ID", "ROOT", "COMPLETED AT", "SIZE", "ERRORS")
		for _, r := range recs {
			fmt.Printf("%-36s %-40s %19s %12s %8d\n",
				r.ID, truncate(string(r.RootURI), 40), r.CompletedAt.Format("2006-01-02 15:04:05"),
				formatBytes(r.RootSize), r.ErrorCount)
		}
		return nil
	},
}

func init() {
	scansCmd.Flags().Bool("running", false, "list in-flight jobs instead of completed scans")
}
