// Package caps holds the two small configuration surfaces every other
// package consults: Capabilities (what the remote server advertises) and
// Options (what the local operator configured). Neither is mutated after
// Engine.RunSync loads them at the start of a run.
package caps

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Capabilities is the subset of the server's status/capabilities response
// that the sync engine consults. It is fetched once per run and cached for
// the run's duration.
type Capabilities struct {
	SupportedChecksumTypes  []string `json:"supportedTypes"`
	PreferredUploadChecksum string   `json:"preferredUploadType"`
	InvalidFilenameRegex    string   `json:"invalidFilenameRegex"`
	ChunkingVersion         string   `json:"chunking"`
	ResetFailingChunksOn    []int    `json:"httpErrorCodesThatResetFailingChunkedUploads"`

	invalidNameRE *regexp.Regexp
}

// capabilitiesResponse mirrors the `{"ocs":{"data":{"capabilities":{"dav":{...}}}}}`
// envelope the status endpoint wraps its payload in.
type capabilitiesResponse struct {
	OCS struct {
		Data struct {
			Capabilities struct {
				Dav Capabilities `json:"dav"`
			} `json:"capabilities"`
		} `json:"data"`
	} `json:"ocs"`
}

// ParseCapabilities decodes a status/capabilities JSON body and compiles
// the invalid-filename regex it carries.
func ParseCapabilities(body []byte) (*Capabilities, error) {
	var env capabilitiesResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode capabilities response: %w", err)
	}
	caps := env.OCS.Data.Capabilities.Dav
	if err := caps.compile(); err != nil {
		return nil, err
	}
	return &caps, nil
}

func (c *Capabilities) compile() error {
	if c.InvalidFilenameRegex == "" {
		return nil
	}
	re, err := regexp.Compile(c.InvalidFilenameRegex)
	if err != nil {
		return fmt.Errorf("compile invalid filename regex %q: %w", c.InvalidFilenameRegex, err)
	}
	c.invalidNameRE = re
	return nil
}

// IsInvalidName reports whether name is forbidden by the server's naming
// rules and must never be uploaded.
func (c *Capabilities) IsInvalidName(name string) bool {
	if c.invalidNameRE == nil {
		return false
	}
	return c.invalidNameRE.MatchString(name)
}

// ChecksumAlgo returns the checksum algorithm to use for upload integrity
// headers, preferring the server's stated preference when it's one this
// client supports, and otherwise the strongest mutually supported type.
func (c *Capabilities) ChecksumAlgo() string {
	supported := map[string]bool{}
	for _, t := range c.SupportedChecksumTypes {
		supported[t] = true
	}
	if c.PreferredUploadChecksum != "" && supported[c.PreferredUploadChecksum] {
		return c.PreferredUploadChecksum
	}
	for _, candidate := range []string{"SHA256", "SHA3-256", "SHA1", "MD5", "ADLER32"} {
		if supported[candidate] {
			return candidate
		}
	}
	return "SHA1"
}

// ResetsChunkedUploadOn reports whether httpStatus should discard an
// in-progress chunked upload session rather than resume it.
func (c *Capabilities) ResetsChunkedUploadOn(httpStatus int) bool {
	for _, code := range c.ResetFailingChunksOn {
		if code == httpStatus {
			return true
		}
	}
	return httpStatus == 404 || httpStatus == 409
}

// VFSMode controls whether remote files are materialized on disk or kept
// as dehydrated placeholders.
type VFSMode int

const (
	// VFSOff materializes every synced file fully on disk.
	VFSOff VFSMode = iota
	// VFSSuffix selects placeholder sentinel files for unhydrated remote
	// files; the engine does not install a provider for it and nothing
	// hydrates a sentinel on read.
	VFSSuffix
)

// Options holds the local operator's configuration for one sync run.
type Options struct {
	LocalRoot          string
	RemoteRoot         string
	ChunkSize          int64
	ParallelNetworkJobs int
	HTTPTimeout        time.Duration
	IgnoreHiddenFiles  bool
	VFSMode            VFSMode
	FilesAreDehydrated bool
}

// DefaultOptions returns the conservative defaults a freshly configured
// sync pairing starts from.
func DefaultOptions() Options {
	return Options{
		ChunkSize:           10 * 1024 * 1024,
		ParallelNetworkJobs: 6,
		HTTPTimeout:         5 * time.Minute,
		IgnoreHiddenFiles:   true,
		VFSMode:             VFSOff,
	}
}
