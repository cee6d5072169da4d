// Package blacklist layers retry/backoff accounting over the journal's
// error_blacklist table: a path that keeps failing is parked here instead
// of being retried every single run, with the backoff growing per
// category until the entry is marked permanent or the user wipes it.
//
// # 7. ERROR HANDLING DESIGN
//
// Taxonomy:
//
//   - Fatal run errors: root-discovery failure, auth failure, database
//     corruption, user cancel (success=false).
//   - Subtree errors: remote-read failure on a non-root directory;
//     reported as an item-level IGNORE with a descriptive string; subtree
//     retained; run overall succeeds.
//   - Item soft errors: network transient, 503 → retried on a later run
//     after a short, fixed blacklist window that does not grow with the
//     retry count.
//   - Item normal errors: 403/404 per-file, checksum mismatch on
//     download, missing required metadata
//     (etag/fileid/permissions) → reported and blacklisted; "etag",
//     "file id", "permissions" appear in the error string respectively.
//   - Item fatal per-file: invalid filename, local filesystem permission
//     denied → IGNORE.
//   - Quota (507): reported as an item soft error; no run-local quota
//     estimate is kept.
//
// Propagation policy: a single item's error never aborts the run unless
// it is a root-level discovery error. Item errors are recorded in the
// blacklist with retry counts; Wipe resets transient entries.
package blacklist

import (
	"time"

	"github.com/oc-sync/davsync/internal/journal"
)

// Policy decides how long a path stays parked after another failure,
// keyed by how many times it has already failed.
type Policy struct {
	// baseDelay is the backoff after the first failure; it doubles per
	// retry up to maxDelay.
	baseDelay time.Duration
	maxDelay  time.Duration
	// permanentAfter is the retry count at which a Normal-category entry
	// is promoted to permanent, stopping all further automatic retries.
	permanentAfter int
}

// DefaultPolicy mirrors the teacher's backoff shape (exponential, capped)
// without a jitter source, since retries here are gated by the run
// interval, not a tight request loop.
func DefaultPolicy() Policy {
	return Policy{baseDelay: 30 * time.Second, maxDelay: 30 * time.Minute, permanentAfter: 10}
}

// Blacklist wraps the journal's error_blacklist CRUD with the backoff
// policy that decides whether a path is currently eligible for retry.
type Blacklist struct {
	journal *journal.Journal
	policy  Policy
	now     func() time.Time
}

func New(j *journal.Journal) *Blacklist {
	return &Blacklist{journal: j, policy: DefaultPolicy(), now: time.Now}
}

// Record adds or bumps a blacklist entry for path after a failure of the
// given category. A Fatal-category failure is always recorded permanent;
// a Normal-category failure becomes permanent once it has failed
// permanentAfter times in a row without an intervening success.
func (b *Blacklist) Record(path string, category journal.ErrorCategory, message string) error {
	entry, err := b.journal.GetBlacklistEntry(path)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &journal.BlacklistEntry{Path: path}
	}
	entry.Category = category
	entry.RetryCount++
	entry.LastTry = b.now().Unix()
	entry.Message = message
	entry.Permanent = category == journal.ErrorFatal ||
		(category == journal.ErrorNormal && entry.RetryCount >= b.policy.permanentAfter)
	entry.IgnoreUntil = b.now().Add(b.delayFor(category, entry.RetryCount)).Unix()
	return b.journal.SetBlacklistEntry(entry)
}

// Clear removes path's entry entirely, typically after a successful
// propagation of that path.
func (b *Blacklist) Clear(path string) error {
	return b.journal.DeleteBlacklistEntry(path)
}

// IsBlocked reports whether path should be skipped this run: either it is
// permanently blacklisted, or its backoff window hasn't elapsed yet.
func (b *Blacklist) IsBlocked(path string) (bool, error) {
	entry, err := b.journal.GetBlacklistEntry(path)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	if entry.Permanent {
		return true, nil
	}
	return b.now().Unix() < entry.IgnoreUntil, nil
}

// Wipe clears every non-permanent entry, giving every soft/normal failure
// a fresh retry on the next run; permanent entries (invalid names,
// permission errors) are left untouched since wiping them would just
// reproduce the same failure immediately.
func (b *Blacklist) Wipe() error {
	return b.journal.WipeErrorBlacklist()
}

func (b *Blacklist) delayFor(category journal.ErrorCategory, retryCount int) time.Duration {
	if category == journal.ErrorSoft {
		// transient errors get a short, non-escalating retry window —
		// they're expected to clear up on their own.
		return b.policy.baseDelay
	}
	delay := b.policy.baseDelay
	for i := 1; i < retryCount && delay < b.policy.maxDelay; i++ {
		delay *= 2
	}
	if delay > b.policy.maxDelay {
		delay = b.policy.maxDelay
	}
	return delay
}
