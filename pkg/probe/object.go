package probe

import (
	"context"
	"strings"

	"github.com/cuemby/disktree/pkg/types"
)

// ObjectEntry is one key returned by an ObjectLister.
type ObjectEntry struct {
	Key   string // full key, relative to the bucket
	Size  int64
	MTime int64
}

// ObjectLister enumerates keys beneath a prefix in a single bucket. It
// is the integration point a concrete cloud-storage SDK (S3, GCS,
// Azure Blob) plugs into; disktree's core depends only on this
// interface (see DESIGN.md for why no concrete SDK from the corpus
// could be grounded here).
type ObjectLister interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error)
}

// ObjectProbe enumerates an object-store prefix. Directories are
// synthesized from "/"-delimited key prefixes, since object stores
// have no native directory concept (spec.md §4.1).
type ObjectProbe struct {
	Lister ObjectLister
}

func (p *ObjectProbe) Run(ctx context.Context, root types.URI, opts Options) *Stream {
	entryCh := make(chan types.RawEntry, 4096)
	errCh := make(chan types.ScanError, 64)
	doneCh := make(chan error, 1)
	counter := &Counter{}

	go func() {
		defer close(entryCh)
		defer close(errCh)

		if p.Lister == nil {
			doneCh <- types.NewError(types.ErrInternal, "no ObjectLister configured", nil)
			return
		}

		bucket, prefix, ok := splitObjectURI(root)
		if !ok {
			doneCh <- types.NewError(types.ErrInvalidURI, "malformed object uri", nil)
			return
		}

		objects, err := p.Lister.ListObjects(ctx, bucket, prefix)
		if err != nil {
			doneCh <- types.NewError(types.ErrSourcePermission, "listing bucket prefix failed", err)
			return
		}

		seenDirs := map[string]bool{}
		schemeRoot := objectSchemeRoot(root)

		entryCh <- types.RawEntry{Kind: types.KindDir, URI: root}
		counter.incItems()
		seenDirs[string(root.Canonical())] = true

		for _, obj := range objects {
			select {
			case <-ctx.Done():
				doneCh <- types.NewError(types.ErrAborted, "probe cancelled", ctx.Err())
				return
			default:
			}

			fullURI := schemeRoot.Join(strings.TrimPrefix(obj.Key, "/"))
			ensureSyntheticDirs(fullURI, root, seenDirs, entryCh, counter)

			entryCh <- types.RawEntry{
				Kind:  types.KindFile,
				Size:  obj.Size,
				MTime: obj.MTime,
				URI:   fullURI,
			}
			counter.incItems()
		}

		doneCh <- nil
	}()

	return &Stream{Entries: entryCh, Errors: errCh, Progress: counter, Done: doneCh}
}

// ensureSyntheticDirs emits a KindDir entry for every ancestor of uri
// strictly below root that has not already been emitted, so the
// Aggregator sees a complete, closeable directory tree even though the
// object store itself has no directory objects.
func ensureSyntheticDirs(uri, root types.URI, seen map[string]bool, entryCh chan<- types.RawEntry, counter *Counter) {
	parent, ok := uri.Parent()
	if !ok || !root.IsAncestorOf(parent) {
		return
	}
	if parent == root {
		return
	}
	key := string(parent.Canonical())
	if seen[key] {
		return
	}
	ensureSyntheticDirs(parent, root, seen, entryCh, counter)
	seen[key] = true
	entryCh <- types.RawEntry{Kind: types.KindDir, URI: parent}
	counter.incItems()
}

func splitObjectURI(u types.URI) (bucket, prefix string, ok bool) {
	s := string(u.Canonical())
	idx := strings.Index(s, "://")
	if idx < 0 {
		return "", "", false
	}
	rest := s[idx+3:]
	parts := strings.SplitN(rest, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix, true
}

func objectSchemeRoot(u types.URI) types.URI {
	s := string(u.Canonical())
	idx := strings.Index(s, "://")
	rest := s[idx+3:]
	bucket := strings.SplitN(rest, "/", 2)[0]
	return types.URI(s[:idx+3] + bucket)
}
