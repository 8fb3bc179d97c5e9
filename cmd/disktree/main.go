// Command disktree indexes disk-space usage across local filesystems
// and object-store buckets and answers point-in-time and historical
// queries against that index. Grounded on cuemby-warren's
// cmd/warren/main.go: an os.Exit(1) wrapper around rootCmd.Execute(),
// persistent flags initialized via cobra.OnInitialize, and one
// package-scope *cobra.Command per subcommand with flags registered in
// an adjacent init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/disktree/pkg/config"
	"github.com/cuemby/disktree/pkg/log"
	"github.com/cuemby/disktree/pkg/types"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"

	cfgFile  string
	logLevel string
	logJSON  bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:     "disktree",
	Short:   "Disk-space usage indexing and query engine",
	Long:    `disktree indexes directory and object-store tree sizes and serves view, history, and compare queries over the index without re-walking the source on every read.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit structured JSON logs instead of console output")

	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(scansCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(workerCmd)
}

func initConfig() {
	c, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = c
}

func initLogging() {
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// exitCodeFor maps an error's kind to a process exit code (spec.md §6).
func exitCodeFor(err error) int {
	switch types.KindOf(err) {
	case types.ErrInvalidURI:
		return 2
	case types.ErrUnsupportedScheme:
		return 3
	case types.ErrSourcePermission:
		return 4
	case types.ErrAborted:
		return 5
	default:
		return 1
	}
}
