package scheduler

import "github.com/cuemby/disktree/pkg/types"

// msgKind tags a single line of the worker-subprocess wire protocol:
// newline-delimited JSON frames written to the worker's stdout and
// read by the parent Scheduler (spec.md §4.6, "runs scanners as
// supervised subprocesses with live progress").
type msgKind string

const (
	msgProgress msgKind = "progress"
	msgResult   msgKind = "result"
	msgFailed   msgKind = "failed"
)

// workerMessage is one line of the protocol. Only the fields relevant
// to Kind are populated.
type workerMessage struct {
	Kind msgKind `json:"kind"`

	// msgProgress
	ItemsFound int64 `json:"items_found,omitempty"`
	ErrorCount int   `json:"error_count,omitempty"`

	// msgResult
	BlobID        string      `json:"blob_id,omitempty"`
	RootSize      int64       `json:"root_size,omitempty"`
	RootNChildren int         `json:"root_n_children,omitempty"`
	RootNDesc     int         `json:"root_n_desc,omitempty"`
	ErrorPaths    []string   `json:"error_paths,omitempty"`
	RootKind      types.Kind `json:"root_kind,omitempty"`

	// msgFailed
	Error string `json:"error,omitempty"`
}
