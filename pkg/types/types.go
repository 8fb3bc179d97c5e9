// Package types defines the entities shared across disktree's indexing
// and query engine: URIs, tree nodes, snapshots, catalog rows, and the
// query-response shapes returned by the planner.
package types

import "time"

// Kind distinguishes a directory from a regular file in a snapshot.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Node is a single row of a Snapshot: one filesystem entry or
// object-store key, with its rollup aggregates if it is a directory.
//
// Invariants (hold over every Snapshot, see spec §3):
//
//	size(dir)    == sum(size(child))
//	n_desc(dir)  == n_children(dir) + sum(n_desc(child))
//	mtime(dir)   == max(mtime(child))
type Node struct {
	URI        URI
	Kind       Kind
	Size       int64
	MTime      int64 // epoch seconds
	ParentURI  URI   // zero value only for the snapshot root
	Depth      int   // distance from snapshot root; root = 0
	NChildren  int   // direct children, 0 for files
	NDesc      int   // count of all strict descendants, 0 for files
}

// RawEntry is one item produced by a Probe: an as-yet-unaggregated
// observation of a path.
type RawEntry struct {
	Kind  Kind
	Size  int64
	MTime int64
	URI   URI
}

// ScanError records a single path that a Probe could not read.
type ScanError struct {
	URI URI
	Err string
}

// Snapshot is the immutable result of one Aggregator run, stored under
// a randomly generated blob ID: a sequence of Nodes in depth-grouped order, plus
// scan-level metadata.
type Snapshot struct {
	BlobID      string
	RootURI     URI
	CompletedAt time.Time
	Nodes       []Node
	ErrorCount  int
	ErrorPaths  []string
}

// Root returns the snapshot's root node.
func (s *Snapshot) Root() (Node, bool) {
	for _, n := range s.Nodes {
		if n.Depth == 0 {
			return n, true
		}
	}
	return Node{}, false
}

// ScanRecord is a catalog row: one completed scan, plus its
// denormalized root aggregates so listing/planning never needs to
// open the referenced blob.
type ScanRecord struct {
	ID             string
	RootURI        URI
	CompletedAt    time.Time
	BlobID         string
	RootSize       int64
	RootNChildren  int
	RootNDesc      int
	ErrorCount     int
	ErrorPaths     []string
	NeedsRepair    bool
}

// ScanStatus is the lifecycle state of an in-flight or terminated job.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanCancelled ScanStatus = "cancelled"
)

// ScanProgress is the ephemeral row tracking an in-flight scan.
type ScanProgress struct {
	ID          string
	RootURI     URI
	WorkerPID   int
	StartedAt   time.Time
	ItemsFound  int64
	ItemsPerSec float64
	ErrorCount  int
	Status      ScanStatus
}

// ViewStatus classifies how complete the data backing a View is.
type ViewStatus string

const (
	ViewFull    ViewStatus = "full"
	ViewPartial ViewStatus = "partial"
	ViewNone    ViewStatus = "none"
)

// ViewNode is a single row of a View: a Node rebased under the query
// URI, annotated with how fresh its data is.
type ViewNode struct {
	Path      string // "." for the root, else suffix relative to the view root
	Parent    string // "." for direct children of the view root
	Kind      Kind
	Size      int64
	MTime     int64
	Depth     int
	NChildren int
	NDesc     int
	Scanned   string // "", "true", or "partial"
}

// View is the Planner's response to view(uri, depth): a re-rooted,
// possibly mixed-freshness slice of one or more Snapshots.
type View struct {
	RootURI     URI
	Status      ViewStatus
	AncestorURI URI // the scan whose blob the base slice came from
	CompletedAt time.Time
	Nodes       []ViewNode
}

// CompareStatus classifies how a path changed between two scans.
type CompareStatus string

const (
	CompareAdded     CompareStatus = "added"
	CompareRemoved   CompareStatus = "removed"
	CompareChanged   CompareStatus = "changed"
	CompareUnchanged CompareStatus = "unchanged"
)

// CompareRow is one child's delta between two scans of the same URI.
type CompareRow struct {
	Path       string
	Status     CompareStatus
	SizeOld    int64
	SizeNew    int64
	SizeDelta  int64
	NDescOld   int
	NDescNew   int
	NDescDelta int
}

// CompareResult is the full output of Planner.Compare.
type CompareResult struct {
	RootURI    URI
	Rows       []CompareRow
	TotalDelta int64
}

// DeleteResult is the outcome of Mutator.Delete.
type DeleteResult struct {
	OK            bool
	DeletedSize   int64
	DeletedNDesc  int
	PathErrors    map[string]string
}
