package main

import (
	"fmt"

	"github.com/cuemby/disktree/pkg/blobstore"
	"github.com/cuemby/disktree/pkg/catalog"
	"github.com/cuemby/disktree/pkg/types"
)

// openCatalog opens the catalog database at the resolved config path.
// Every subcommand that touches the index calls this first.
func openCatalog() (*catalog.Catalog, error) {
	return catalog.Open(cfg.CatalogPath())
}

func openBlobs() (*blobstore.Store, error) {
	return blobstore.New(cfg.BlobPath())
}

// formatBytes renders a byte count in human-readable form.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// truncate shortens s to max runes, appending an ellipsis if it was cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func mustURI(s string) (types.URI, error) {
	if s == "" {
		return "", types.NewError(types.ErrInvalidURI, "uri must not be empty", nil)
	}
	return types.URI(s).Canonical(), nil
}
