package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/disktree/pkg/events"
	"github.com/cuemby/disktree/pkg/scheduler"
	"github.com/cuemby/disktree/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan URI",
	Short: "Start (or attach to) a scan of a local path or object-store bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := mustURI(args[0])
		if err != nil {
			return err
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		broker := events.NewBroker(0)
		broker.Start()
		defer broker.Stop()

		sched := scheduler.New(cfg, cat, broker)

		wait, _ := cmd.Flags().GetBool("wait")

		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)

		jobID, err := sched.StartScan(root)
		if err != nil {
			return err
		}
		fmt.Printf("scan %s started for %s\n", jobID, root)

		if !wait {
			return nil
		}
		return waitForScan(sub, jobID)
	},
}

func init() {
	scanCmd.Flags().Bool("wait", true, "block until the scan terminates, printing progress")
}

func waitForScan(sub events.Subscriber, jobID string) error {
	for frame := range sub {
		if frame.JobID != jobID {
			continue
		}
		lag := ""
		if frame.Lagged {
			lag = " (lagged)"
		}
		switch frame.Status {
		case string(types.ScanRunning):
			fmt.Printf("\rrunning: %d items, %d errors%s", frame.ItemsFound, frame.ErrorCount, lag)
		case string(types.ScanCompleted):
			fmt.Println("\nscan completed")
			runGCBestEffort()
			return nil
		case string(types.ScanFailed), string(types.ScanCancelled):
			fmt.Println()
			return types.NewError(types.ErrAborted, "scan did not complete: "+frame.Status, nil)
		}
	}
	return nil
}
