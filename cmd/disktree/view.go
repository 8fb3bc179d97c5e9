package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/disktree/pkg/planner"
	"github.com/cuemby/disktree/pkg/types"
)

var viewCmd = &cobra.Command{
	Use:   "view URI",
	Short: "Show the rolled-up size of a path and its children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, err := mustURI(args[0])
		if err != nil {
			return err
		}
		depth, _ := cmd.Flags().GetInt("depth")

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()
		blobs, err := openBlobs()
		if err != nil {
			return err
		}

		v, err := planner.New(cat, blobs).View(uri, depth)
		if err != nil {
			return err
		}
		printView(v)
		return nil
	},
}

func init() {
	viewCmd.Flags().Int("depth", 1, "maximum depth of children to show below the target")
}

func printView(v *types.View) {
	fmt.Printf("%s  [%s]\n", v.RootURI, v.Status)
	if v.Status == "none" {
		return
	}
	fmt.Printf("ancestor scan: %s (completed %s)\n\n", v.AncestorURI, v.CompletedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("%-8s %-40s %10s %12s %8s %s\n", "DEPTH", "PATH", "KIND", "SIZE", "N_DESC", "SCANNED")
	for _, n := range v.Nodes {
		scanned := n.Scanned
		if scanned == "" {
			scanned = "-"
		}
		fmt.Printf("%-8d %-40s %10s %12s %8d %s\n", n.Depth, truncate(n.Path, 40), n.Kind, formatBytes(n.Size), n.NDesc, scanned)
	}
}
