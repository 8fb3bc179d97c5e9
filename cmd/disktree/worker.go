package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/disktree/pkg/scheduler"
	"github.com/cuemby/disktree/pkg/types"
)

// workerCmd is the hidden re-exec target the Scheduler launches: a
// disktree process running with no Catalog or BlobStore lock held
// beyond what it needs for its own blob write, so it can be killed
// freely without corrupting shared state.
var workerCmd = &cobra.Command{
	Use:    scheduler.WorkerSubcommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		blobDir, _ := cmd.Flags().GetString("blob-dir")
		followSymlinks, _ := cmd.Flags().GetString("follow-symlinks")
		dedupeByInode, _ := cmd.Flags().GetString("dedupe-by-inode")
		sampleErrorPaths, _ := cmd.Flags().GetInt("sample-error-paths")
		progressTick, _ := cmd.Flags().GetString("progress-tick")
		excludeGlobs, _ := cmd.Flags().GetString("exclude-globs")

		follow, _ := strconv.ParseBool(followSymlinks)
		dedupe, _ := strconv.ParseBool(dedupeByInode)
		tick, err := time.ParseDuration(progressTick)
		if err != nil {
			tick = 2 * time.Second
		}
		var globs []string
		if excludeGlobs != "" {
			globs = strings.Split(excludeGlobs, ",")
		}

		opts := scheduler.WorkerOptions{
			Root:             mustRootURI(root),
			BlobDir:          blobDir,
			ExcludeGlobs:     globs,
			FollowSymlinks:   follow,
			DedupeByInode:    dedupe,
			SampleErrorPaths: sampleErrorPaths,
			ProgressTick:     tick,
		}
		return scheduler.RunWorkerProcess(cmd.Context(), opts, os.Stdout)
	},
}

func init() {
	workerCmd.Flags().String("root", "", "scan root URI")
	workerCmd.Flags().String("blob-dir", "", "directory snapshot blobs are written under")
	workerCmd.Flags().String("follow-symlinks", "false", "follow symlinks while walking")
	workerCmd.Flags().String("dedupe-by-inode", "true", "skip directories already visited (same device and inode)")
	workerCmd.Flags().Int("sample-error-paths", 100, "maximum number of error paths recorded")
	workerCmd.Flags().String("progress-tick", "2s", "interval between progress frames")
	workerCmd.Flags().String("exclude-globs", "", "comma-separated glob patterns to exclude")
}

func mustRootURI(s string) types.URI { return types.URI(s).Canonical() }
