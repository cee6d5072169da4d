// Package config loads and saves the client's on-disk configuration: the
// local sync root, the remote WebDAV location, the account credentials
// handle, and the sync options passed to internal/caps.Options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oc-sync/davsync/internal/caps"
)

var (
	home, _ = os.UserHomeDir()

	// DefaultConfigPath is where a freshly initialized config lives when no
	// explicit --config flag is given.
	DefaultConfigPath = filepath.Join(home, ".davsync", "config.json")
	// DefaultLocalRoot is where davsync keeps synced files by default.
	DefaultLocalRoot = filepath.Join(home, "DavSync")
)

// Config is the on-disk shape of one sync pairing.
type Config struct {
	LocalRoot  string `json:"local_root"`
	RemoteURL  string `json:"remote_url"`
	RemoteRoot string `json:"remote_root"`
	Username   string `json:"username"`
	Password   string `json:"password"`

	ChunkSize          int64  `json:"chunk_size"`
	ParallelNetworkJobs int   `json:"parallel_network_jobs"`
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds"`
	IgnoreHiddenFiles  bool   `json:"ignore_hidden_files"`
	VFSMode            string `json:"vfs_mode"` // "off" | "suffix"
	FilesAreDehydrated bool   `json:"files_are_dehydrated"`

	// Path is the file this Config was loaded from; it round-trips through
	// neither Save's input nor the JSON body.
	Path string `json:"-"`
}

// Default returns the conservative defaults a freshly initialized pairing
// starts from.
func Default() *Config {
	opts := caps.DefaultOptions()
	return &Config{
		LocalRoot:           DefaultLocalRoot,
		RemoteRoot:          "/",
		ChunkSize:           opts.ChunkSize,
		ParallelNetworkJobs: opts.ParallelNetworkJobs,
		HTTPTimeoutSeconds:  int(opts.HTTPTimeout.Seconds()),
		IgnoreHiddenFiles:   opts.IgnoreHiddenFiles,
		VFSMode:             "off",
		Path:                DefaultConfigPath,
	}
}

// Load reads and decodes the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Save writes cfg as indented JSON to path, creating its parent directory
// if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	c.Path = path
	return nil
}

// Validate reports the first configuration problem that would prevent a
// sync run from starting at all.
func (c *Config) Validate() error {
	if c.LocalRoot == "" {
		return fmt.Errorf("local_root is required")
	}
	if c.RemoteURL == "" {
		return fmt.Errorf("remote_url is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.ParallelNetworkJobs <= 0 {
		return fmt.Errorf("parallel_network_jobs must be positive, got %d", c.ParallelNetworkJobs)
	}
	switch c.VFSMode {
	case "off", "suffix", "":
	default:
		return fmt.Errorf("vfs_mode %q is not one of off, suffix", c.VFSMode)
	}
	return nil
}

// EnsureLocalRoot creates LocalRoot if it doesn't already exist.
func (c *Config) EnsureLocalRoot() error {
	return os.MkdirAll(c.LocalRoot, 0o755)
}

// JournalPath is where this pairing's sqlite journal lives, tucked inside
// a dotdir under LocalRoot so it never shows up as a file to sync.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LocalRoot, ".davsync", "journal.db")
}

// Options projects the config's sync settings into caps.Options.
func (c *Config) Options() caps.Options {
	opts := caps.DefaultOptions()
	opts.LocalRoot = c.LocalRoot
	opts.RemoteRoot = c.RemoteRoot
	if c.ChunkSize > 0 {
		opts.ChunkSize = c.ChunkSize
	}
	if c.ParallelNetworkJobs > 0 {
		opts.ParallelNetworkJobs = c.ParallelNetworkJobs
	}
	if c.HTTPTimeoutSeconds > 0 {
		opts.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second
	}
	opts.IgnoreHiddenFiles = c.IgnoreHiddenFiles
	opts.FilesAreDehydrated = c.FilesAreDehydrated
	if c.VFSMode == "suffix" {
		opts.VFSMode = caps.VFSSuffix
	}
	return opts
}
