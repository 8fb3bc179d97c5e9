// Package catalog persists scan metadata in a local bbolt database: one
// row per completed scan (denormalized root aggregates included, so
// listing and ancestor-resolution never need to open a blob) plus the
// ephemeral progress rows for in-flight jobs. Grounded on the bucket
// layout and JSON-per-key style of
// cuemby-warren/pkg/storage/boltdb.go.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/disktree/pkg/blobstore"
	"github.com/cuemby/disktree/pkg/dtmetrics"
	"github.com/cuemby/disktree/pkg/types"
)

var (
	bucketScans    = []byte("scans")
	bucketProgress = []byte("scan_progress")
)

// Catalog is a bbolt-backed store of ScanRecord and ScanProgress rows.
type Catalog struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (*Catalog, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, types.NewError(types.ErrInternal, "create catalog directory", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "open catalog database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketScans, bucketProgress} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, types.NewError(types.ErrInternal, "create catalog buckets", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error { return c.db.Close() }

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// --- scan records ---

// PutScan upserts a completed scan's catalog row.
func (c *Catalog) PutScan(rec *types.ScanRecord) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketScans).Put([]byte(rec.ID), data)
	})
}

// GetScan returns a single scan record by ID.
func (c *Catalog) GetScan(id string) (*types.ScanRecord, error) {
	var rec types.ScanRecord
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketScans).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "decode scan record", err)
	}
	if !found {
		return nil, types.NewError(types.ErrNotFound, "scan not found: "+id, nil)
	}
	return &rec, nil
}

// DeleteScan removes a scan's catalog row. It does not touch the
// underlying blob; callers that also want the blob gone should call
// BlobStore.Delete themselves.
func (c *Catalog) DeleteScan(id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScans).Delete([]byte(id))
	})
}

// ListScans returns every scan record, unordered.
func (c *Catalog) ListScans() ([]*types.ScanRecord, error) {
	var recs []*types.ScanRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScans).ForEach(func(_, v []byte) error {
			var rec types.ScanRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	if err == nil {
		dtmetrics.CatalogBlobsTotal.Set(float64(len(recs)))
	}
	return recs, err
}

// healthyScans returns every scan record not flagged needs_repair.
// spec.md:173 — "blob_corrupt: mark the catalog row needs_repair =
// true; Planner skips it" — every read path the Planner (or a CLI
// listing) resolves candidates through filters on this, not ListScans
// directly; ListScans itself stays unfiltered since GC and the
// Mutator's repair sweep both need to see broken rows too.
func (c *Catalog) healthyScans() ([]*types.ScanRecord, error) {
	all, err := c.ListScans()
	if err != nil {
		return nil, err
	}
	out := make([]*types.ScanRecord, 0, len(all))
	for _, r := range all {
		if !r.NeedsRepair {
			out = append(out, r)
		}
	}
	return out, nil
}

// HistoryFor returns every healthy scan rooted exactly at uri, most
// recent first (spec.md §4.5 history_for).
func (c *Catalog) HistoryFor(uri types.URI) ([]*types.ScanRecord, error) {
	all, err := c.healthyScans()
	if err != nil {
		return nil, err
	}
	var out []*types.ScanRecord
	for _, r := range all {
		if r.RootURI == uri {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

// LatestPerRoot returns the most recent healthy scan for every
// distinct RootURI present in the catalog.
func (c *Catalog) LatestPerRoot() (map[types.URI]*types.ScanRecord, error) {
	all, err := c.healthyScans()
	if err != nil {
		return nil, err
	}
	latest := map[types.URI]*types.ScanRecord{}
	for _, r := range all {
		cur, ok := latest[r.RootURI]
		if !ok || r.CompletedAt.After(cur.CompletedAt) {
			latest[r.RootURI] = r
		}
	}
	return latest, nil
}

// LatestForRoot returns the most recent scan rooted exactly at uri.
func (c *Catalog) LatestForRoot(uri types.URI) (*types.ScanRecord, bool, error) {
	hist, err := c.HistoryFor(uri)
	if err != nil {
		return nil, false, err
	}
	if len(hist) == 0 {
		return nil, false, nil
	}
	return hist[0], true, nil
}

// AncestorScan resolves the nearest ancestor-or-self of uri that has
// at least one completed scan, returning its most recent scan record.
// Ties (equal-depth candidates) never arise because ancestry is a
// strict total order on prefixes (spec.md §4.4 ancestor resolution).
func (c *Catalog) AncestorScan(uri types.URI) (*types.ScanRecord, bool, error) {
	latest, err := c.LatestPerRoot()
	if err != nil {
		return nil, false, err
	}
	var best *types.ScanRecord
	bestDepth := -1
	for root, rec := range latest {
		if !root.IsAncestorOf(uri) && root != uri {
			continue
		}
		depth := root.Depth()
		if depth > bestDepth {
			best, bestDepth = rec, depth
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return best, true, nil
}

// FresherChildrenOf returns every healthy scan rooted at a strict
// descendant of uri whose CompletedAt is after `after` — the
// candidate set the Planner patches into a base slice read from an
// ancestor scan (spec.md §4.4 patching algorithm).
func (c *Catalog) FresherChildrenOf(uri types.URI, after time.Time) ([]*types.ScanRecord, error) {
	all, err := c.healthyScans()
	if err != nil {
		return nil, err
	}
	var out []*types.ScanRecord
	for _, r := range all {
		if r.RootURI == uri {
			continue
		}
		if !uri.IsAncestorOf(r.RootURI) {
			continue
		}
		if r.CompletedAt.After(after) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RootURI < out[j].RootURI })
	return out, nil
}

// GC prunes catalog rows per spec.md §3's retention policy: the most
// recent healthy scan for every root_uri is always kept regardless of
// age; older duplicates of a root are pruned once they have aged past
// retention, and any row marked needs_repair is pruned regardless of
// age. The catalog row goes first and its blob
// second, so a crash mid-GC can only ever leave an orphaned blob with
// no row pointing at it (harmless — it simply isn't referenced by
// anything and can be swept by a later GC pass); the reverse order
// would risk a surviving row referencing a blob that's already gone
// (spec.md:44, "its blob is referenced until GC deletes both";
// spec.md:173, "blob_corrupt ... GC may delete it"). Returns the
// number of rows pruned.
func (c *Catalog) GC(blobs *blobstore.Store, retention time.Duration) (int, error) {
	recs, err := c.ListScans()
	if err != nil {
		return 0, err
	}

	latest, err := c.LatestPerRoot()
	if err != nil {
		return 0, err
	}
	latestID := make(map[types.URI]string, len(latest))
	for root, r := range latest {
		latestID[root] = r.ID
	}

	cutoff := time.Now().Add(-retention)
	pruned := 0
	for _, r := range recs {
		if id, ok := latestID[r.RootURI]; ok && id == r.ID {
			continue
		}
		if !r.NeedsRepair && r.CompletedAt.After(cutoff) {
			continue
		}
		if err := c.DeleteScan(r.ID); err != nil {
			return pruned, err
		}
		if err := blobs.Delete(r.BlobID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// --- scan progress ---

// PutProgress upserts an in-flight job's progress row.
func (c *Catalog) PutProgress(p *types.ScanProgress) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketProgress).Put([]byte(p.ID), data)
	})
}

// GetProgress returns a single job's progress row.
func (c *Catalog) GetProgress(id string) (*types.ScanProgress, bool, error) {
	var p types.ScanProgress
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketProgress).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &p, true, nil
}

// DeleteProgress removes a job's progress row, typically once it has
// terminated and its ScanRecord (or failure) has been recorded.
func (c *Catalog) DeleteProgress(id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProgress).Delete([]byte(id))
	})
}

// ListProgress returns every in-flight job's progress row.
func (c *Catalog) ListProgress() ([]*types.ScanProgress, error) {
	var out []*types.ScanProgress
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProgress).ForEach(func(_, v []byte) error {
			var p types.ScanProgress
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}
