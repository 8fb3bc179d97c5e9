package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/disktree/pkg/types"
)

func drain(s *Stream) ([]types.RawEntry, []types.ScanError, error) {
	var entries []types.RawEntry
	var errs []types.ScanError
	entriesOpen, errsOpen := true, true
	for entriesOpen || errsOpen {
		select {
		case e, ok := <-s.Entries:
			if !ok {
				entriesOpen = false
				continue
			}
			entries = append(entries, e)
		case e, ok := <-s.Errors:
			if !ok {
				errsOpen = false
				continue
			}
			errs = append(errs, e)
		}
	}
	return entries, errs, <-s.Done
}

// Boundary (spec.md §8): a scan that encounters an unreadable subtree
// continues past it; error_count is at least 1 and the readable
// portion is still fully covered.
func TestLocalProbeContinuesPastUnreadableSubtree(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission denial is not enforced for root")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.Mkdir(locked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	p := &LocalProbe{}
	s := p.Run(context.Background(), types.URI(dir), Options{})
	entries, errs, doneErr := drain(s)

	require.NoError(t, doneErr)
	require.GreaterOrEqual(t, len(errs), 1)

	var sawRoot, sawFile, sawLocked bool
	for _, e := range entries {
		switch e.URI {
		case types.URI(dir):
			sawRoot = true
		case types.URI(dir).Join("a.txt"):
			sawFile = true
		case types.URI(dir).Join("locked"):
			sawLocked = true
		}
	}
	assert.True(t, sawRoot)
	assert.True(t, sawFile)
	assert.True(t, sawLocked) // the directory entry itself is observed, just not its contents

	assert.Equal(t, int64(len(entries)), s.Progress.Items())
	assert.GreaterOrEqual(t, s.Progress.Errors(), int64(1))
}

// spec.md §4.1: the root URI itself being unreadable is fatal, not a
// sampled per-path error.
func TestLocalProbeFatalOnUnreadableRoot(t *testing.T) {
	p := &LocalProbe{}
	s := p.Run(context.Background(), types.URI("/does/not/exist/at/all"), Options{})
	_, _, doneErr := drain(s)
	require.Error(t, doneErr)
	assert.Equal(t, types.ErrSourcePermission, types.KindOf(doneErr))
}

func TestLocalProbeExcludesGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.log"), []byte("x"), 0o644))

	p := &LocalProbe{}
	s := p.Run(context.Background(), types.URI(dir), Options{ExcludeGlobs: []string{"*.log"}})
	entries, _, doneErr := drain(s)
	require.NoError(t, doneErr)

	var sawKeep, sawSkip bool
	for _, e := range entries {
		if e.URI == types.URI(dir).Join("keep.txt") {
			sawKeep = true
		}
		if e.URI == types.URI(dir).Join("skip.log") {
			sawSkip = true
		}
	}
	assert.True(t, sawKeep)
	assert.False(t, sawSkip)
}

func TestLocalProbeSparseFileUsesAllocatedSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sparse.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(10*1024*1024)) // 10MiB logical, ~0 allocated
	require.NoError(t, f.Close())

	p := &LocalProbe{}
	s := p.Run(context.Background(), types.URI(dir), Options{})
	entries, _, doneErr := drain(s)
	require.NoError(t, doneErr)

	for _, e := range entries {
		if e.URI == types.URI(dir).Join("sparse.bin") {
			assert.Less(t, e.Size, int64(10*1024*1024))
		}
	}
}
