// Package remote implements the WebDAV-like client: PROPFIND/GET/PUT/
// MKCOL/MOVE/DELETE against a remote tree, chunked upload sessions, and
// checksum/error-classification helpers the propagator and discovery
// packages consume.
//
// CONCURRENCY & RESOURCE MODEL (carried verbatim so the invariants travel
// with the code): every Transport call takes a context.Context and must
// respect cancellation promptly — Engine.Stop cancels the run context and
// expects in-flight requests to unwind within one HTTP round trip, not
// wait out a chunked upload to completion. Client is safe for concurrent
// use by multiple propagator workers; it holds no per-call mutable state
// beyond what the underlying Transport pools internally (connections,
// retry counters).
//
// # 6. EXTERNAL INTERFACES
//
// Remote wire protocol (WebDAV-over-HTTP, server-specific extensions):
//
//   - PROPFIND with body requesting <d:resourcetype>, <d:getcontentlength>,
//     <d:getlastmodified>, <d:getetag>, <oc:id>, <oc:permissions>,
//     <oc:checksums>, <oc:size>. Response is 207 Multi-Status XML.
//   - PUT with headers: X-OC-Mtime: <unix-seconds>, OC-Checksum:
//     <ALGO>:<hex>, OC-Total-Length: <bytes> for chunk-final MOVE.
//   - MOVE with Destination: header, Overwrite: T|F.
//   - Chunked upload namespace: PROPFIND/MKCOL
//     /remote.php/dav/uploads/<user>/<transfer-id>/; chunk PUT to
//     .../<zero-padded-offset>; finalize with MOVE of .../.file to
//     destination.
//
// Response headers consumed: OC-ETag, OC-FileId, OC-Checksum, Content-MD5,
// X-OC-Mtime.
//
// Capabilities consumed (server JSON under "dav"): checksums.supportedTypes,
// checksums.preferredUploadType, invalidFilenameRegex,
// httpErrorCodesThatResetFailingChunkedUploads: [int, …], chunking version.
package remote

import (
	"context"
	"io"
)

// Request is a transport-agnostic description of one HTTP call against
// the remote tree.
type Request struct {
	Method  string
	Path    string // slash-separated, relative to the WebDAV root
	Headers map[string]string
	Body    io.Reader
	// ContentLength is set when Body's length is known in advance, so a
	// chunk PUT doesn't need to buffer to discover it.
	ContentLength int64
}

// Response is a transport-agnostic HTTP response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       io.ReadCloser
}

// Header looks up a response header case-sensitively against the stored
// key, falling back to an empty string when absent — callers pass the
// canonical header name (e.g. "OC-ETag").
func (r *Response) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[name]
}

// Transport performs one HTTP round trip against the remote server. The
// default implementation is reqtransport.New; tests substitute a fake.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
