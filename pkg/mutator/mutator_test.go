package mutator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/disktree/pkg/blobstore"
	"github.com/cuemby/disktree/pkg/catalog"
	"github.com/cuemby/disktree/pkg/types"
)

func newHarness(t *testing.T) (*catalog.Catalog, *blobstore.Store, string) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	return cat, blobs, t.TempDir()
}

func putScan(t *testing.T, cat *catalog.Catalog, blobs *blobstore.Store, id string, snap *types.Snapshot) {
	t.Helper()
	blobID, err := blobs.Put(snap)
	require.NoError(t, err)
	root, ok := snap.Root()
	require.True(t, ok)
	require.NoError(t, cat.PutScan(&types.ScanRecord{
		ID:            id,
		RootURI:       snap.RootURI,
		CompletedAt:   snap.CompletedAt,
		BlobID:        blobID,
		RootSize:      root.Size,
		RootNChildren: root.NChildren,
		RootNDesc:     root.NDesc,
	}))
}

// Scenario 6 (spec.md §8): delete("/P/Q") where Q is size 7, n_desc 4;
// the covering scan's row for /P decreases size by 7, n_desc by 5.
func TestDeleteRepairsAncestorAggregates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Q"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Q", "f.txt"), []byte("x"), 0o644))

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)

	p := types.URI(dir)
	q := p.Join("Q")

	putScan(t, cat, blobs, "scan-p", &types.Snapshot{
		RootURI:     p,
		CompletedAt: time.Now().UTC(),
		Nodes: []types.Node{
			{URI: p, Kind: types.KindDir, Size: 20, Depth: 0, NChildren: 1, NDesc: 5},
			{URI: q, Kind: types.KindDir, Size: 7, ParentURI: p, Depth: 1, NDesc: 4},
		},
	})

	m := New(cat, blobs)
	result, err := m.Delete(q)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(7), result.DeletedSize)
	assert.Equal(t, 4, result.DeletedNDesc)

	rec, err := cat.GetScan("scan-p")
	require.NoError(t, err)
	assert.Equal(t, int64(13), rec.RootSize) // 20 - 7
	assert.Equal(t, 0, rec.RootNChildren)
	assert.Equal(t, 0, rec.RootNDesc) // 5 - (4+1)
	assert.False(t, rec.NeedsRepair)

	_, err = os.Stat(filepath.Join(dir, "Q"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteRejectsSchemeRoot(t *testing.T) {
	cat, blobs, _ := newHarness(t)
	m := New(cat, blobs)
	_, err := m.Delete("/")
	assert.Equal(t, types.ErrInvalidURI, types.KindOf(err))
}

func TestDeleteRejectsObjectStore(t *testing.T) {
	cat, blobs, _ := newHarness(t)
	m := New(cat, blobs)
	_, err := m.Delete("s3://bucket/key")
	assert.Equal(t, types.ErrUnsupportedScheme, types.KindOf(err))
}

func TestDeleteNoCoveringScan(t *testing.T) {
	cat, blobs, _ := newHarness(t)
	m := New(cat, blobs)
	_, err := m.Delete("/nowhere/x")
	assert.Equal(t, types.ErrNotFound, types.KindOf(err))
}
