// Package mutator deletes a path from its source and repairs every
// snapshot that knew about it, per spec.md §4.7. Repair rewrites a
// blob write-new-then-swap, the same pattern blobstore.Store.Put uses
// for a fresh write, and updates the catalog's denormalized root
// aggregates to match — grounded on the write-then-swap style of
// cuemby-warren's pkg/storage/boltdb.go.
package mutator

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/disktree/pkg/blobstore"
	"github.com/cuemby/disktree/pkg/catalog"
	"github.com/cuemby/disktree/pkg/dtmetrics"
	"github.com/cuemby/disktree/pkg/log"
	"github.com/cuemby/disktree/pkg/types"
)

// Mutator deletes paths from a local source tree and repairs the
// Catalog/BlobStore rows that indexed them.
type Mutator struct {
	Catalog *catalog.Catalog
	Blobs   *blobstore.Store
	logger  zerolog.Logger
}

// New returns a Mutator backed by the given catalog and blob store.
func New(cat *catalog.Catalog, blobs *blobstore.Store) *Mutator {
	return &Mutator{Catalog: cat, Blobs: blobs, logger: log.WithComponent("mutator")}
}

// Delete removes uri from the source and repairs every snapshot that
// covers it (spec.md §4.7).
func (m *Mutator) Delete(uri types.URI) (*types.DeleteResult, error) {
	uri = uri.Canonical()

	if uri.Scheme() == types.SchemeObject {
		return nil, types.NewError(types.ErrUnsupportedScheme, "object-store delete is a non-goal", nil)
	}
	if uri.IsRoot() {
		return nil, types.NewError(types.ErrInvalidURI, "cannot delete a scheme root", nil)
	}

	anc, ok, err := m.Catalog.AncestorScan(uri)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "no scan covers "+string(uri), nil)
	}

	ancSnap, err := m.Blobs.OpenPushdown(anc.BlobID, -1, string(uri))
	if err != nil {
		return nil, err
	}
	var target *types.Node
	for i := range ancSnap.Nodes {
		if ancSnap.Nodes[i].URI == uri {
			target = &ancSnap.Nodes[i]
			break
		}
	}
	if target == nil {
		return nil, types.NewError(types.ErrNotFound, "uri not present in covering snapshot", nil)
	}
	deletedSize := target.Size
	deletedNDesc := target.NDesc

	pathErrors := deleteFromSource(string(uri), target.Kind)

	recs, err := m.Catalog.ListScans()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.RootURI != uri && !rec.RootURI.IsAncestorOf(uri) {
			continue
		}
		if err := m.repairScan(rec, uri, deletedSize, deletedNDesc); err != nil {
			m.logger.Warn().Err(err).Str("scan_id", rec.ID).Str("root_uri", string(rec.RootURI)).
				Msg("deferring repair, marking needs_repair")
			rec.NeedsRepair = true
			if putErr := m.Catalog.PutScan(rec); putErr != nil {
				m.logger.Error().Err(putErr).Str("scan_id", rec.ID).Msg("failed to mark scan needs_repair")
			}
		}
	}

	outcome := "ok"
	if len(pathErrors) > 0 {
		outcome = "partial"
	}
	dtmetrics.DeletesTotal.WithLabelValues(outcome).Inc()
	dtmetrics.DeletedBytesTotal.Add(float64(deletedSize))

	return &types.DeleteResult{
		OK:           len(pathErrors) == 0,
		DeletedSize:  deletedSize,
		DeletedNDesc: deletedNDesc,
		PathErrors:   pathErrors,
	}, nil
}

// deleteFromSource removes uri (file or directory tree) from the local
// filesystem, deleting children before parents so a permission error
// partway through still leaves as much of the tree gone as possible.
// Every path that failed to delete is reported rather than aborting
// the whole operation (spec.md §4.7 point 3).
func deleteFromSource(path string, kind types.Kind) map[string]string {
	errs := map[string]string{}
	if kind != types.KindDir {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs[path] = err.Error()
		}
		return errs
	}

	var all []string
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			errs[p] = err.Error()
			return nil
		}
		all = append(all, p)
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(all)))
	for _, p := range all {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs[p] = err.Error()
		}
	}
	return errs
}

// repairScan rewrites rec's blob to drop target and its descendants,
// adjusts every strict ancestor's aggregates, and swaps the blob and
// catalog row into place (spec.md §4.7 point 4).
func (m *Mutator) repairScan(rec *types.ScanRecord, target types.URI, deletedSize int64, deletedNDesc int) error {
	snap, err := m.Blobs.Open(rec.BlobID)
	if err != nil {
		return err
	}

	parent, hasParent := target.Parent()

	kept := make([]types.Node, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if n.URI == target || target.IsAncestorOf(n.URI) {
			continue
		}
		if n.URI.IsAncestorOf(target) {
			n.Size -= deletedSize
			n.NDesc -= deletedNDesc + 1
			if hasParent && n.URI == parent {
				n.NChildren--
			}
		}
		kept = append(kept, n)
	}
	snap.Nodes = kept

	oldBlobID := rec.BlobID
	newBlobID, err := m.Blobs.Put(snap)
	if err != nil {
		return err
	}

	rec.BlobID = newBlobID
	rec.NeedsRepair = false
	if root, ok := snap.Root(); ok {
		rec.RootSize = root.Size
		rec.RootNChildren = root.NChildren
		rec.RootNDesc = root.NDesc
	}
	if err := m.Catalog.PutScan(rec); err != nil {
		return err
	}

	if err := m.Blobs.Delete(oldBlobID); err != nil {
		m.logger.Warn().Err(err).Str("blob_id", oldBlobID).Msg("failed to delete superseded blob")
	}
	return nil
}
