package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SaveThenLoad_RoundTrips(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")

	cfg := Default()
	cfg.LocalRoot = filepath.Join(tmp, "sync")
	cfg.RemoteURL = "https://dav.example.com"
	cfg.RemoteRoot = "/remote.php/dav/files/alice"
	cfg.Username = "alice"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.LocalRoot, loaded.LocalRoot)
	assert.Equal(t, cfg.RemoteURL, loaded.RemoteURL)
	assert.Equal(t, cfg.Username, loaded.Username)
	assert.Equal(t, path, loaded.Path)
}

func TestConfig_Validate_RequiresCoreFields(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "missing remote_url and username")

	cfg.RemoteURL = "https://dav.example.com"
	cfg.Username = "alice"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RejectsUnknownVFSMode(t *testing.T) {
	cfg := Default()
	cfg.RemoteURL = "https://dav.example.com"
	cfg.Username = "alice"
	cfg.VFSMode = "platform-placeholder"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vfs_mode")
}

func TestConfig_Options_ProjectsIntoCapsOptions(t *testing.T) {
	cfg := Default()
	cfg.LocalRoot = "/data/sync"
	cfg.RemoteRoot = "/remote"
	cfg.ChunkSize = 1 << 20
	cfg.ParallelNetworkJobs = 3
	cfg.VFSMode = "suffix"

	opts := cfg.Options()
	assert.Equal(t, "/data/sync", opts.LocalRoot)
	assert.Equal(t, "/remote", opts.RemoteRoot)
	assert.EqualValues(t, 1<<20, opts.ChunkSize)
	assert.Equal(t, 3, opts.ParallelNetworkJobs)
}
