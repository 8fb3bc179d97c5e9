package probe

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/cuemby/disktree/pkg/types"
)

// LocalProbe enumerates a local POSIX tree depth-first. Size is
// allocated size (block-count * 512), not logical length, so sparse
// files are accounted for accurately (spec.md §4.1). Grounded on the
// worker-pool shape of other_examples' michaelscutari/dug scanner and
// the semaphore-bounded recursive walk of lumipallolabs/diskdive.
type LocalProbe struct {
	// Workers bounds directory-walk concurrency; 0 selects a default.
	Workers int
}

const defaultLocalWorkers = 8

func (p *LocalProbe) Run(ctx context.Context, root types.URI, opts Options) *Stream {
	entryCh := make(chan types.RawEntry, 4096)
	errCh := make(chan types.ScanError, 256)
	doneCh := make(chan error, 1)
	counter := &Counter{}

	workers := p.Workers
	if workers <= 0 {
		workers = defaultLocalWorkers
	}
	sampleCap := opts.SampleErrorPaths
	if sampleCap <= 0 {
		sampleCap = 100
	}

	go func() {
		defer close(entryCh)
		defer close(errCh)

		rootPath := string(root.Canonical())
		info, err := os.Lstat(rootPath)
		if err != nil {
			doneCh <- types.NewError(types.ErrSourcePermission, "root path unreadable", err)
			return
		}

		var rootDev uint64
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			rootDev = uint64(st.Dev)
		}

		w := &localWalk{
			opts:      opts,
			root:      root,
			rootDev:   rootDev,
			entryCh:   entryCh,
			errCh:     errCh,
			counter:   counter,
			sem:       make(chan struct{}, workers),
			seenInode: make(map[[2]uint64]bool),
			sampleCap: sampleCap,
		}

		entryCh <- rawEntryFor(root, info, rootDev)
		counter.incItems()

		if info.IsDir() {
			w.wg.Add(1)
			w.walkDir(ctx, root, rootPath, 0)
			w.wg.Wait()
		}

		doneCh <- nil
	}()

	return &Stream{Entries: entryCh, Errors: errCh, Progress: counter, Done: doneCh}
}

type localWalk struct {
	opts      Options
	root      types.URI
	rootDev   uint64
	entryCh   chan<- types.RawEntry
	errCh     chan<- types.ScanError
	counter   *Counter
	sem       chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	seenInode map[[2]uint64]bool
	sampled   int
	sampleCap int
}

// walkDir reads the directory at (uri, path) and recurses into
// subdirectories, bounded by w.sem. Callers must have already called
// wg.Add(1) for this invocation; walkDir calls wg.Done() on return.
func (w *localWalk) walkDir(ctx context.Context, uri types.URI, path string, depth int) {
	defer w.wg.Done()

	select {
	case <-ctx.Done():
		return
	default:
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		w.recordError(uri, err)
		return
	}

	for _, de := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		childPath := filepath.Join(path, de.Name())
		childURI := uri.Join(de.Name())

		if w.excluded(childPath) {
			continue
		}

		info, err := os.Lstat(childPath)
		if err != nil {
			w.recordError(childURI, err)
			continue
		}

		isSymlink := info.Mode()&os.ModeSymlink != 0
		if isSymlink {
			if !w.opts.FollowSymlinks {
				continue
			}
			target, err := os.Stat(childPath)
			if err != nil {
				w.recordError(childURI, err)
				continue
			}
			info = target
		}

		var dev, ino uint64
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			dev, ino = uint64(st.Dev), st.Ino
		}

		if info.IsDir() && w.opts.DedupeByInode {
			key := [2]uint64{dev, ino}
			w.mu.Lock()
			if w.seenInode[key] {
				w.mu.Unlock()
				continue
			}
			w.seenInode[key] = true
			w.mu.Unlock()
		}

		w.entryCh <- rawEntryFor(childURI, info, dev)
		w.counter.incItems()

		if info.IsDir() {
			w.wg.Add(1)
			select {
			case w.sem <- struct{}{}:
				go func(u types.URI, p string, d int) {
					defer func() { <-w.sem }()
					w.walkDir(ctx, u, p, d)
				}(childURI, childPath, depth+1)
			default:
				// Worker pool saturated: recurse inline rather than
				// unbounded goroutine growth.
				w.walkDir(ctx, childURI, childPath, depth+1)
			}
		}
	}
}

func (w *localWalk) excluded(path string) bool {
	for _, g := range w.opts.ExcludeGlobs {
		if ok, _ := filepath.Match(g, path); ok {
			return true
		}
		if ok, _ := filepath.Match(g, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

func (w *localWalk) recordError(uri types.URI, err error) {
	w.counter.incErrors()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sampled < w.sampleCap {
		w.sampled++
		select {
		case w.errCh <- types.ScanError{URI: uri, Err: err.Error()}:
		default:
		}
	}
}

func rawEntryFor(uri types.URI, info os.FileInfo, dev uint64) types.RawEntry {
	kind := types.KindFile
	var size int64
	if info.IsDir() {
		kind = types.KindDir
	} else {
		size = allocatedSize(info)
	}
	return types.RawEntry{
		Kind:  kind,
		Size:  size,
		MTime: info.ModTime().Unix(),
		URI:   uri,
	}
}

// allocatedSize returns a file's on-disk footprint (block-count * 512)
// rather than its logical length, so sparse files contribute their
// true disk cost to rollups (spec.md §4.1, boundary scenario §8).
func allocatedSize(info os.FileInfo) int64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Blocks * 512
	}
	return info.Size()
}
