package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100, cfg.SampleErrorPaths)
	assert.Equal(t, 2*time.Second, cfg.ProgressTick)
	assert.True(t, cfg.DedupeByInode)
	assert.Equal(t, 30*24*time.Hour, cfg.GCRetention)
}

// Load tolerates a missing config file, matching the teacher's
// tolerant startup behavior (cmd/warren never requires one either).
func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disktree.yaml")
	yaml := "root_dir: /data/disktree\nmax_concurrent_scans: 4\nfollow_symlinks: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/disktree", cfg.RootDir)
	assert.Equal(t, 4, cfg.MaxConcurrentScans)
	assert.True(t, cfg.FollowSymlinks)
	// Fields absent from the file keep their Default() values.
	assert.Equal(t, 100, cfg.SampleErrorPaths)
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestBlobPathAndCatalogPathJoinRootDir(t *testing.T) {
	cfg := &Config{RootDir: "/var/lib/disktree", BlobDir: "blobs", DBPath: "catalog.db"}
	assert.Equal(t, "/var/lib/disktree/blobs", cfg.BlobPath())
	assert.Equal(t, "/var/lib/disktree/catalog.db", cfg.CatalogPath())

	abs := &Config{RootDir: "/var/lib/disktree", BlobDir: "/mnt/blobs", DBPath: "/mnt/catalog.db"}
	assert.Equal(t, "/mnt/blobs", abs.BlobPath())
	assert.Equal(t, "/mnt/catalog.db", abs.CatalogPath())
}
