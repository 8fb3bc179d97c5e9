// Package aggregator folds a Probe's RawEntry stream into a Snapshot
// with bottom-up rollups (size, n_children, n_desc, mtime), grounded
// on other_examples' michaelscutari/dug rollup.Aggregator: directories
// are buffered and only "closed" (rolled up) once every child has been
// observed.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/cuemby/disktree/pkg/types"
)

type accum struct {
	uri       types.URI
	kind      types.Kind
	size      int64
	mtime     int64
	parentURI types.URI
	hasParent bool
	depth     int
	children  []types.URI
	nDesc     int
}

// Aggregate consumes entries to exhaustion and returns the resulting
// Snapshot. entries must be a finite stream (the Probe contract); the
// stream need not be depth-sorted — every entry is buffered until the
// channel closes, then rolled up in a single decreasing-depth pass
// (spec.md §4.2 point 2).
func Aggregate(root types.URI, entries <-chan types.RawEntry) (*types.Snapshot, error) {
	root = root.Canonical()
	nodes := make(map[types.URI]*accum)

	for e := range entries {
		uri := e.URI.Canonical()
		a := &accum{
			uri:   uri,
			kind:  e.Kind,
			mtime: e.MTime,
		}
		if e.Kind == types.KindFile {
			a.size = e.Size
		}
		if parent, ok := uri.Parent(); ok && root.IsAncestorOf(parent) {
			a.parentURI = parent
			a.hasParent = true
		} else if uri != root {
			// Entry outside the declared root tree; ignore rather than
			// corrupt the snapshot with a dangling reference.
			continue
		}
		suffix := root.Suffix(uri)
		if suffix == "." {
			a.depth = 0
		} else {
			a.depth = countSegments(suffix)
		}
		nodes[uri] = a
	}

	rootAccum, ok := nodes[root]
	if !ok {
		return nil, fmt.Errorf("aggregator: root %q never observed", root)
	}
	_ = rootAccum

	// Link children.
	for uri, a := range nodes {
		if !a.hasParent || uri == root {
			continue
		}
		if parent, ok := nodes[a.parentURI]; ok {
			parent.children = append(parent.children, uri)
		}
	}

	// Roll up bottom-up: process deepest nodes first so every child's
	// final size/mtime/n_desc is settled before its parent sums them.
	ordered := make([]*accum, 0, len(nodes))
	for _, a := range nodes {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].depth != ordered[j].depth {
			return ordered[i].depth > ordered[j].depth
		}
		return ordered[i].uri > ordered[j].uri
	})

	for _, a := range ordered {
		if a.kind != types.KindDir {
			continue
		}
		sort.Slice(a.children, func(i, j int) bool { return a.children[i] < a.children[j] })
		var size int64
		var maxMTime int64 = a.mtime
		nDesc := len(a.children)
		for i, cURI := range a.children {
			c := nodes[cURI]
			size += c.size
			if i == 0 || c.mtime > maxMTime {
				maxMTime = c.mtime
			}
			nDesc += c.nDesc
		}
		a.size = size
		a.mtime = maxMTime
		a.nDesc = nDesc
	}

	// Emit in depth-ascending, URI-ascending order: every prefix of
	// this slice that includes all depth<=k nodes can be produced by
	// truncating at the first node with depth>k (spec.md §4.2 ordering
	// guarantee), since depth is non-decreasing across the slice.
	out := make([]*accum, 0, len(nodes))
	for _, a := range nodes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].depth != out[j].depth {
			return out[i].depth < out[j].depth
		}
		return out[i].uri < out[j].uri
	})

	snapNodes := make([]types.Node, len(out))
	for i, a := range out {
		snapNodes[i] = types.Node{
			URI:       a.uri,
			Kind:      a.kind,
			Size:      a.size,
			MTime:     a.mtime,
			ParentURI: a.parentURI,
			Depth:     a.depth,
			NChildren: len(a.children),
			NDesc:     a.nDesc,
		}
	}

	return &types.Snapshot{RootURI: root, Nodes: snapNodes}, nil
}

func countSegments(suffix string) int {
	n := 1
	for _, r := range suffix {
		if r == '/' {
			n++
		}
	}
	return n
}
