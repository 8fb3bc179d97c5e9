// Package probe implements disktree's source enumerators: a lazy,
// finite, non-restartable stream of (kind, size, mtime, uri)
// observations over a local POSIX tree or an object-store prefix.
package probe

import (
	"context"
	"sync/atomic"

	"github.com/cuemby/disktree/pkg/types"
)

// Options configures a single probe run (spec.md §6 configuration
// schema, the probe-relevant subset).
type Options struct {
	ExcludeGlobs     []string
	FollowSymlinks   bool
	DedupeByInode    bool
	SampleErrorPaths int // default 100
}

// Counter holds the live item/error counters a Probe updates as it
// runs, sampled by the Scheduler at progress_tick to populate
// ScanProgress rows without synchronizing on every entry.
type Counter struct {
	items  atomic.Int64
	errors atomic.Int64
}

// Items returns the current item count.
func (c *Counter) Items() int64 { return c.items.Load() }

// Errors returns the current error count.
func (c *Counter) Errors() int64 { return c.errors.Load() }

func (c *Counter) incItems()  { c.items.Add(1) }
func (c *Counter) incErrors() { c.errors.Add(1) }

// Stream is the lazy sequence a Probe produces. Entries and Errors are
// closed when the probe has finished; Done then carries the top-level
// fatal error, if any (a permission error on the root URI itself, per
// spec.md §4.1 — "the top-level uri being unreadable is fatal").
type Stream struct {
	Entries  <-chan types.RawEntry
	Errors   <-chan types.ScanError
	Progress *Counter
	Done     <-chan error
}

// Probe produces a Stream of RawEntry for a single root URI. A Probe
// is finite and non-restartable: Run must be called at most once per
// Stream.
type Probe interface {
	Run(ctx context.Context, root types.URI, opts Options) *Stream
}

// ForScheme selects the Probe implementation appropriate for a URI's
// scheme.
func ForScheme(scheme types.Scheme, lister ObjectLister) Probe {
	switch scheme {
	case types.SchemeObject:
		return &ObjectProbe{Lister: lister}
	default:
		return &LocalProbe{}
	}
}
