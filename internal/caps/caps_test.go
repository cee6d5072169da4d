package caps

import "testing"

const sampleCapabilities = `{
  "ocs": {
    "data": {
      "capabilities": {
        "dav": {
          "supportedTypes": ["SHA1", "SHA256", "MD5"],
          "preferredUploadType": "SHA256",
          "invalidFilenameRegex": "[\\\\/:*?\"<>|]",
          "chunking": "1.0",
          "httpErrorCodesThatResetFailingChunkedUploads": [403, 404, 409]
        }
      }
    }
  }
}`

func TestParseCapabilities(t *testing.T) {
	c, err := ParseCapabilities([]byte(sampleCapabilities))
	if err != nil {
		t.Fatal(err)
	}
	if c.ChunkingVersion != "1.0" {
		t.Fatalf("unexpected chunking version: %s", c.ChunkingVersion)
	}
	if algo := c.ChecksumAlgo(); algo != "SHA256" {
		t.Fatalf("expected preferred SHA256, got %s", algo)
	}
	if !c.IsInvalidName(`bad:name`) {
		t.Fatal("expected colon in filename to be invalid")
	}
	if c.IsInvalidName("fine-name.txt") {
		t.Fatal("expected plain filename to be valid")
	}
}

func TestChecksumAlgo_FallsBackWhenPreferredUnsupported(t *testing.T) {
	c := &Capabilities{
		SupportedChecksumTypes:  []string{"MD5", "ADLER32"},
		PreferredUploadChecksum: "SHA256",
	}
	if algo := c.ChecksumAlgo(); algo != "MD5" {
		t.Fatalf("expected fallback to MD5, got %s", algo)
	}
}

func TestResetsChunkedUploadOn(t *testing.T) {
	c := &Capabilities{ResetFailingChunksOn: []int{403}}
	if !c.ResetsChunkedUploadOn(403) {
		t.Fatal("expected configured code to reset")
	}
	if !c.ResetsChunkedUploadOn(404) {
		t.Fatal("expected 404 to reset unconditionally")
	}
	if c.ResetsChunkedUploadOn(500) {
		t.Fatal("expected 500 to not reset")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.ParallelNetworkJobs <= 0 {
		t.Fatal("expected positive default parallelism")
	}
	if opts.VFSMode != VFSOff {
		t.Fatal("expected VFS off by default")
	}
}
