package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/disktree/pkg/types"
)

func entries(es ...types.RawEntry) <-chan types.RawEntry {
	ch := make(chan types.RawEntry, len(es))
	for _, e := range es {
		ch <- e
	}
	close(ch)
	return ch
}

func TestAggregateRollsUpSizeAndNDesc(t *testing.T) {
	root := types.URI("/data")
	snap, err := Aggregate(root, entries(
		types.RawEntry{Kind: types.KindDir, URI: "/data", MTime: 1},
		types.RawEntry{Kind: types.KindDir, URI: "/data/a", MTime: 2},
		types.RawEntry{Kind: types.KindFile, URI: "/data/a/x", Size: 10, MTime: 3},
		types.RawEntry{Kind: types.KindFile, URI: "/data/a/y", Size: 20, MTime: 4},
		types.RawEntry{Kind: types.KindFile, URI: "/data/z", Size: 5, MTime: 1},
	))
	require.NoError(t, err)

	byURI := map[types.URI]types.Node{}
	for _, n := range snap.Nodes {
		byURI[n.URI] = n
	}

	assert.Equal(t, int64(35), byURI["/data"].Size)
	assert.Equal(t, 4, byURI["/data"].NDesc) // a, x, y, z
	assert.Equal(t, int64(4), byURI["/data"].MTime)
	assert.Equal(t, 2, byURI["/data"].NChildren)

	assert.Equal(t, int64(30), byURI["/data/a"].Size)
	assert.Equal(t, 2, byURI["/data/a"].NDesc)
}

func TestAggregateDepthAscendingOrder(t *testing.T) {
	root := types.URI("/data")
	snap, err := Aggregate(root, entries(
		types.RawEntry{Kind: types.KindDir, URI: "/data"},
		types.RawEntry{Kind: types.KindDir, URI: "/data/a"},
		types.RawEntry{Kind: types.KindFile, URI: "/data/a/x", Size: 1},
	))
	require.NoError(t, err)

	require.Len(t, snap.Nodes, 3)
	for i := 1; i < len(snap.Nodes); i++ {
		assert.LessOrEqual(t, snap.Nodes[i-1].Depth, snap.Nodes[i].Depth)
	}
	assert.Equal(t, types.URI("/data"), snap.Nodes[0].URI)
}

func TestAggregateSparseFile(t *testing.T) {
	root := types.URI("/data")
	snap, err := Aggregate(root, entries(
		types.RawEntry{Kind: types.KindDir, URI: "/data"},
		types.RawEntry{Kind: types.KindFile, URI: "/data/sparse.img", Size: 0},
	))
	require.NoError(t, err)

	root0, ok := snap.Root()
	require.True(t, ok)
	assert.Equal(t, int64(0), root0.Size)
	assert.Equal(t, 1, root0.NDesc)
}

func TestAggregateMissingRootErrors(t *testing.T) {
	_, err := Aggregate("/data", entries(
		types.RawEntry{Kind: types.KindFile, URI: "/other/x", Size: 1},
	))
	assert.Error(t, err)
}
