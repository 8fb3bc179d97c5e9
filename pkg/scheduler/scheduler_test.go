package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/disktree/pkg/catalog"
	"github.com/cuemby/disktree/pkg/config"
	"github.com/cuemby/disktree/pkg/events"
	"github.com/cuemby/disktree/pkg/types"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return New(&config.Config{}, cat, events.NewBroker(8))
}

// spec.md §4.6: a second StartScan of a root already running returns the
// existing job's ID instead of launching a duplicate subprocess.
func TestStartScanCoalescesSameRoot(t *testing.T) {
	s := newTestScheduler(t)

	root := types.URI("/data").Canonical()
	s.mu.Lock()
	s.jobs["existing-job"] = &job{id: "existing-job", rootURI: root, startedAt: time.Now(), done: make(chan struct{})}
	s.byRoot[root] = "existing-job"
	s.mu.Unlock()

	id, err := s.StartScan("/data")
	require.NoError(t, err)
	assert.Equal(t, "existing-job", id)
}

func TestCancelScanUnknownJobIsNoop(t *testing.T) {
	s := newTestScheduler(t)
	assert.NoError(t, s.CancelScan("does-not-exist"))
}

func TestItemsPerSecZeroElapsed(t *testing.T) {
	assert.Equal(t, float64(0), itemsPerSec(10, time.Now().Add(time.Hour)))
}

func TestItemsPerSecPositiveElapsed(t *testing.T) {
	rate := itemsPerSec(100, time.Now().Add(-10*time.Second))
	assert.InDelta(t, 10, rate, 1)
}
