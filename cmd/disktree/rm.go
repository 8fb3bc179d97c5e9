package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/disktree/pkg/mutator"
)

var rmCmd = &cobra.Command{
	Use:   "rm URI",
	Short: "Delete a path from its source and repair affected snapshots",
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
		blobs, err := openBlobs()
		if err != nil {
			return err
		}

		result, err := mutator.New(cat, blobs).Delete(uri)
		if err != nil {
			return err
		}

		fmt.Printf("deleted %s from %s (n_desc=%d)\n", formatBytes(result.DeletedSize), uri, result.DeletedNDesc)
		for path, msg := range result.PathErrors {
			fmt.Printf("  error: %s: %s\n", path, msg)
		}
		if !result.OK {
			return fmt.Errorf("delete completed with %d path error(s)", len(result.PathErrors))
		}
		return nil
	},
}
