package remote

import "fmt"

// ErrorClass buckets an HTTP response into the retry/abort taxonomy the
// engine's error handling relies on (spec §7).
type ErrorClass int

const (
	// ClassSuccess is any 2xx response.
	ClassSuccess ErrorClass = iota
	// ClassSoft is transient (e.g. 503, connection reset): the engine
	// parks the item in the blacklist for a short fixed window and retries
	// it on a later run.
	ClassSoft
	// ClassNormal blacklists the item with backoff (e.g. 403, checksum
	// mismatch on download).
	ClassNormal
	// ClassFatal aborts the entire run (e.g. 401, malformed root
	// PROPFIND response).
	ClassFatal
	// ClassQuota is a 507 Insufficient Storage. The propagator reports it
	// as a soft error, the same as ClassSoft; no estimate of the remaining
	// quota is kept, so later uploads in the same run are still attempted.
	ClassQuota
)

// StatusError wraps a non-2xx HTTP response with its classification.
type StatusError struct {
	StatusCode int
	Path       string
	Class      ErrorClass
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Path, e.StatusCode, e.Message)
}

// ClassifyStatus buckets httpStatus for a non-root request. isRoot
// distinguishes the root-PROPFIND-is-always-fatal rule (spec §4.3) from
// the subtree-soft-error rule that otherwise applies to the same codes.
func ClassifyStatus(httpStatus int, isRoot bool) ErrorClass {
	switch {
	case httpStatus >= 200 && httpStatus < 300:
		return ClassSuccess
	case httpStatus == 507:
		return ClassQuota
	case isRoot:
		return ClassFatal
	case httpStatus == 401 || httpStatus == 495:
		return ClassFatal
	case httpStatus == 403 || httpStatus == 404:
		return ClassNormal
	case httpStatus == 423 || httpStatus == 429 || httpStatus >= 500:
		return ClassSoft
	default:
		return ClassNormal
	}
}

// NewStatusError builds a StatusError already classified for path.
func NewStatusError(httpStatus int, path, message string, isRoot bool) *StatusError {
	return &StatusError{
		StatusCode: httpStatus,
		Path:       path,
		Class:      ClassifyStatus(httpStatus, isRoot),
		Message:    message,
	}
}

// ProtocolError marks a response that violated the WebDAV contract itself
// (e.g. a 200 where a 207 Multi-Status was required) — always fatal for
// the subtree it occurred in.
type ProtocolError struct {
	Path    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error: %s", e.Path, e.Message)
}
