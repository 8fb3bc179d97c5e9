// Package planner answers "what do I know about URI X?" by combining
// an ancestor snapshot with fresher descendant snapshots — the
// fresher-child patching algorithm of spec.md §4.5. Grounded on
// other_examples' lumipallolabs/diskdive node tree (parent pointers,
// children slice) for the rebase step, layered over disktree's own
// Catalog/BlobStore contracts.
package planner

import (
	"github.com/cuemby/disktree/pkg/blobstore"
	"github.com/cuemby/disktree/pkg/catalog"
	"github.com/cuemby/disktree/pkg/dtmetrics"
	"github.com/cuemby/disktree/pkg/types"
)

// Planner resolves View and CompareResult queries.
type Planner struct {
	Catalog *catalog.Catalog
	Blobs   *blobstore.Store
}

// New returns a Planner backed by the given catalog and blob store.
func New(cat *catalog.Catalog, blobs *blobstore.Store) *Planner {
	return &Planner{Catalog: cat, Blobs: blobs}
}

// maxCorruptRetries bounds the next-best-ancestor retry loop in View:
// each retry marks one more scan needs_repair, so the catalog can
// never offer the same corrupt candidate twice and this only guards
// against pathological churn, not a real infinite loop.
const maxCorruptRetries = 8

// View answers view(uri, depth) per spec.md §4.5.
func (p *Planner) View(target types.URI, depthLimit int) (*types.View, error) {
	timer := dtmetrics.NewTimer()
	target = target.Canonical()

	var anc *types.ScanRecord
	var snap *types.Snapshot
	for attempt := 0; ; attempt++ {
		var ok bool
		var err error
		anc, ok, err = p.Catalog.AncestorScan(target)
		if err != nil {
			return nil, err
		}
		if !ok {
			timer.ObserveDuration(dtmetrics.ViewDuration)
			dtmetrics.ViewStatusTotal.WithLabelValues(string(types.ViewNone)).Inc()
			return &types.View{RootURI: target, Status: types.ViewNone}, nil
		}

		ancRoot := anc.RootURI
		baseDepth := 0
		if ancRoot != target {
			baseDepth = countDepth(ancRoot.Suffix(target))
		}

		maxReadDepth := baseDepth + depthLimit
		snap, err = p.Blobs.OpenPushdown(anc.BlobID, maxReadDepth, string(target))
		if err == nil {
			break
		}
		// spec.md:173 — a corrupt blob is not a query failure: mark the
		// row needs_repair so the Planner (and GC) skip it from here on,
		// and fall back to the next-best ancestor-or-self candidate.
		if types.KindOf(err) != types.ErrBlobCorrupt || attempt >= maxCorruptRetries {
			return nil, err
		}
		if markErr := p.markNeedsRepair(anc); markErr != nil {
			return nil, err
		}
	}

	ancRoot := anc.RootURI

	var targetNode *types.Node
	byURI := make(map[types.URI]*types.Node, len(snap.Nodes))
	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		byURI[n.URI] = n
		if n.URI == target {
			targetNode = n
		}
	}
	if targetNode == nil {
		// The ancestor snapshot predates this path's creation.
		timer.ObserveDuration(dtmetrics.ViewDuration)
		dtmetrics.ViewStatusTotal.WithLabelValues(string(types.ViewNone)).Inc()
		return &types.View{RootURI: target, Status: types.ViewNone, AncestorURI: ancRoot, CompletedAt: anc.CompletedAt}, nil
	}

	// Rebase: rewrite every returned node's path/parent relative to target.
	type rebased struct {
		node   types.Node
		path   string
		parent string
	}
	rows := make(map[string]*rebased, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if n.URI != target && !target.IsAncestorOf(n.URI) {
			continue
		}
		relDepth := n.Depth - targetNode.Depth
		if relDepth < 0 || relDepth > depthLimit {
			continue
		}
		rel := "."
		if n.URI != target {
			rel = target.Suffix(n.URI)
		}
		parentRel := "."
		if n.ParentURI != target && n.ParentURI != "" {
			parentRel = target.Suffix(n.ParentURI)
		}
		rows[rel] = &rebased{node: n, path: rel, parent: parentRel}
	}

	partial := false

	fresher, err := p.Catalog.FresherChildrenOf(target, anc.CompletedAt)
	if err != nil {
		return nil, err
	}
	for _, s := range fresher {
		relDepth := countDepth(target.Suffix(s.RootURI))
		if relDepth == 1 {
			rel := target.Suffix(s.RootURI)
			r, existed := rows[rel]
			patched := types.Node{
				URI:       s.RootURI,
				Kind:      types.KindDir,
				Size:      s.RootSize,
				MTime:     s.CompletedAt.Unix(),
				ParentURI: target,
				Depth:     targetNode.Depth + 1,
				NChildren: s.RootNChildren,
				NDesc:     s.RootNDesc,
			}
			if existed {
				r.node = patched
			} else {
				rows[rel] = &rebased{node: patched, path: rel, parent: "."}
			}
			partial = true
		} else if relDepth > 1 {
			// Something below the depth-1 ancestor is fresher than the
			// base slice, but patching does not propagate past one level
			// (spec.md §4.5 point 4); the enclosing child is marked
			// "partial" below via scannedStateFor.
			partial = true
		}
	}

	nodes := make([]types.ViewNode, 0, len(rows))
	for _, r := range rows {
		scanned := ""
		if r.node.URI == target {
			scanned = ""
		} else if depthOf(r.path) == 1 {
			scanned = scannedStateFor(r.node.URI, target, fresher)
		}
		nodes = append(nodes, types.ViewNode{
			Path:      r.path,
			Parent:    r.parent,
			Kind:      r.node.Kind,
			Size:      r.node.Size,
			MTime:     r.node.MTime,
			Depth:     depthOf(r.path),
			NChildren: r.node.NChildren,
			NDesc:     r.node.NDesc,
			Scanned:   scanned,
		})
	}

	// Re-roll: recompute target aggregates from (patched) direct children.
	var size int64
	var maxMTime = targetNode.MTime
	nChildren := 0
	nDesc := 0
	for _, n := range nodes {
		if n.Depth != 1 {
			continue
		}
		size += n.Size
		if n.MTime > maxMTime {
			maxMTime = n.MTime
		}
		nChildren++
		nDesc += n.NDesc + 1
	}
	rootViewNode := types.ViewNode{
		Path:      ".",
		Parent:    "",
		Kind:      targetNode.Kind,
		Size:      size,
		MTime:     maxMTime,
		Depth:     0,
		NChildren: nChildren,
		NDesc:     nDesc,
	}
	if targetNode.Kind != types.KindDir {
		rootViewNode.Size = targetNode.Size
		rootViewNode.NChildren = 0
		rootViewNode.NDesc = 0
	}

	final := make([]types.ViewNode, 0, len(nodes)+1)
	final = append(final, rootViewNode)
	for _, n := range nodes {
		if n.Path == "." {
			continue
		}
		final = append(final, n)
	}
	sortViewNodes(final)

	status := types.ViewFull
	if ancRoot != target || partial {
		status = types.ViewPartial
	}

	timer.ObserveDuration(dtmetrics.ViewDuration)
	dtmetrics.ViewStatusTotal.WithLabelValues(string(status)).Inc()

	return &types.View{
		RootURI:     target,
		Status:      status,
		AncestorURI: ancRoot,
		CompletedAt: anc.CompletedAt,
		Nodes:       final,
	}, nil
}

// markNeedsRepair flags rec so AncestorScan/FresherChildrenOf/HistoryFor
// stop offering it until the Mutator repairs it (spec.md:173).
func (p *Planner) markNeedsRepair(rec *types.ScanRecord) error {
	rec.NeedsRepair = true
	return p.Catalog.PutScan(rec)
}

func scannedStateFor(childURI, target types.URI, fresher []*types.ScanRecord) string {
	for _, s := range fresher {
		if s.RootURI == childURI {
			return "true"
		}
	}
	for _, s := range fresher {
		if childURI.IsAncestorOf(s.RootURI) {
			return "partial"
		}
	}
	return ""
}

func countDepth(suffix string) int {
	if suffix == "." || suffix == "" {
		return 0
	}
	n := 1
	for _, r := range suffix {
		if r == '/' {
			n++
		}
	}
	return n
}

func depthOf(relPath string) int {
	return countDepth(relPath)
}

func sortViewNodes(nodes []types.ViewNode) {
	// Stable ordering: root first, then depth-ascending, then path —
	// matches the deterministic-output requirement (planner idempotence,
	// spec.md §8).
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0; j-- {
			a, b := nodes[j-1], nodes[j]
			if a.Path == "." {
				break
			}
			if b.Path == "." || lessViewNode(b, a) {
				nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
				continue
			}
			break
		}
	}
}

func lessViewNode(a, b types.ViewNode) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.Path < b.Path
}

// Compare answers compare(uri, scan_a, scan_b) per spec.md §4.6.
func (p *Planner) Compare(uri types.URI, idA, idB string) (*types.CompareResult, error) {
	timer := dtmetrics.NewTimer()
	defer timer.ObserveDuration(dtmetrics.CompareDuration)

	uri = uri.Canonical()

	sliceA, err := p.sliceAt(uri, idA)
	if err != nil {
		return nil, err
	}
	sliceB, err := p.sliceAt(uri, idB)
	if err != nil {
		return nil, err
	}
	if sliceA == nil && sliceB == nil {
		return nil, types.NewError(types.ErrNotFound, "neither scan covers "+string(uri), nil)
	}

	paths := map[string]bool{}
	for p := range sliceA {
		paths[p] = true
	}
	for p := range sliceB {
		paths[p] = true
	}
	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sortStrings(ordered)

	var rows []types.CompareRow
	var totalDelta int64
	for _, rel := range ordered {
		a, hasA := sliceA[rel]
		b, hasB := sliceB[rel]
		row := types.CompareRow{Path: rel}
		switch {
		case hasA && !hasB:
			row.Status = types.CompareRemoved
			row.SizeOld, row.NDescOld = a.Size, a.NDesc
			row.SizeDelta = -a.Size
			row.NDescDelta = -a.NDesc
		case !hasA && hasB:
			row.Status = types.CompareAdded
			row.SizeNew, row.NDescNew = b.Size, b.NDesc
			row.SizeDelta = b.Size
			row.NDescDelta = b.NDesc
		default:
			row.SizeOld, row.NDescOld = a.Size, a.NDesc
			row.SizeNew, row.NDescNew = b.Size, b.NDesc
			row.SizeDelta = b.Size - a.Size
			row.NDescDelta = b.NDesc - a.NDesc
			if row.SizeDelta == 0 && row.NDescDelta == 0 {
				row.Status = types.CompareUnchanged
			} else {
				row.Status = types.CompareChanged
			}
		}
		totalDelta += row.SizeDelta
		rows = append(rows, row)
	}

	return &types.CompareResult{RootURI: uri, Rows: rows, TotalDelta: totalDelta}, nil
}

// sliceAt returns the direct children of uri as seen by scan id,
// keyed by suffix-relative path, or nil if that scan does not cover
// uri at all.
func (p *Planner) sliceAt(uri types.URI, scanID string) (map[string]types.Node, error) {
	rec, err := p.Catalog.GetScan(scanID)
	if err != nil {
		if types.KindOf(err) == types.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if rec.RootURI != uri && !rec.RootURI.IsAncestorOf(uri) {
		return nil, nil
	}
	snap, err := p.Blobs.OpenPushdown(rec.BlobID, -1, string(uri))
	if err != nil {
		if types.KindOf(err) == types.ErrBlobCorrupt {
			// spec.md:173 — treat the corrupt scan as if it does not
			// cover uri at all, rather than failing the whole compare.
			_ = p.markNeedsRepair(rec)
			return nil, nil
		}
		return nil, err
	}
	rekeyed := map[string]types.Node{}
	for _, n := range snap.Nodes {
		if n.ParentURI != uri {
			continue
		}
		rekeyed[uri.Suffix(n.URI)] = n
	}
	return rekeyed, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
