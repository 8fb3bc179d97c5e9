package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history URI",
	Short: "List every scan rooted exactly at a URI, most recent first",
	Args:  cobra.ExactArgs(1),
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

		recs, err := cat.HistoryFor(uri)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Printf("no scans recorded for %s\n", uri)
			return nil
		}
		fmt.Printf("%-36s %19s %12s %10s %8s\n", "SCAN ID", "COMPLETED AT", "SIZE", "N_DESC", "ERRORS")
		for _, r := range recs {
			fmt.Printf("%-36s %19s %12s %10d %8d\n",
				r.ID, r.CompletedAt.Format("2006-01-02 15:04:05"), formatBytes(r.RootSize), r.RootNDesc, r.ErrorCount)
		}
		return nil
	},
}
