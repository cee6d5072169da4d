// Package discovery reconciles the local tree, the remote tree, and the
// journal's last-synced state into a flat list of SyncItems the
// propagator executes.
//
// Discovery performs a recursive walk producing SyncItems. For each
// directory, it fetches remote entries (PROPFIND depth-1 if the
// journal's cached etag differs from the parent's remote etag, else
// uses journal), lists local entries, and joins with journal records
// by path.
//
// # Three-way classification
//
// For each name appearing in any of {local, remote, journal}:
//
//	local    remote   journal   instruction
//	—        —        present   REMOVE (drop from journal)
//	present  —        —         NEW (up)
//	—        present  —         NEW (down)
//	present  —        present   REMOVE (remote-deleted, local must be removed)
//	—        present  present   REMOVE (local-deleted, remote must be removed)
//	present  present  —         NEW (up); CONFLICT if the sizes differ or a server checksum of the local checksum's algorithm disagrees
//	present  present  present   see change detection below
//
// # Change detection (all three present)
//
// local_changed = (local.modtime, local.size) != (journal.modtime, journal.size)
// remote_changed = (remote.etag != journal.etag)
//
//   - Neither changed -> NONE.
//   - Only local changed -> SYNC up.
//   - Only remote changed -> SYNC down, unless fake-conflict suppression applies.
//   - Both changed -> CONFLICT. Direction is None; the local file is
//     renamed to "<base> (conflicted copy YYYY-MM-DD HHMMSS).<ext>" and
//     the remote copy is downloaded to the original name. The conflict
//     is recorded in the journal.
//
// # Fake-conflict suppression
//
// When remote.modtime == journal.modtime and remote.size == journal.size,
// the server may still advertise a checksum:
//
//   - No server checksum -> treat as unchanged (NONE).
//   - Server weak checksum (Adler32) and it matches local -> NONE; mismatch -> SYNC down.
//   - Server strong checksum (SHA*) and it matches local -> NONE; mismatch -> SYNC down.
//   - If modtime differs but strong checksum matches -> NONE (skip download).
//   - If modtime differs and only weak checksum matches -> SYNC down anyway.
//
// # Move detection
//
// A removed entry on one side and a new entry on the other side with the
// same fileid (remote-originated moves) or the same (size, checksum)
// (local-originated moves; no inode is compared) is coalesced into a
// single RENAME item. FileId duplication (the same id appears in two subtrees) is
// handled by refusing to pair a remove with a new in a different subtree
// if the id still exists elsewhere, and by preferring the pairing with
// the nearest common ancestor.
//
// When a directory is renamed, its entire subtree is re-parented by
// emitting a single RENAME for the directory; children keep their
// identities. If any child inside the renamed directory also has
// independent changes, those are emitted as additional items relative to
// the new path.
//
// Move-and-modify: if a file has a new path AND content differs, emit
// REMOVE(old) + NEW(new) rather than RENAME; the journal loses the move
// linkage deliberately to keep data safe.
//
// # Selective sync
//
// Paths matching the BlackList are excluded from download/upload;
// existing local copies are removed on the first sync after exclusion
// unless the local copy has pending local changes (dirty), in which case
// the directory is retained locally and not propagated. The journal
// marks ancestor etags "_invalid_" when the list changes so the next
// sync re-evaluates.
//
// # Invalid names and hidden files
//
// Names matching the server's invalidFilenameRegex capability -> IGNORE
// with reason "invalid filename". Hidden files (dotfiles) -> IGNORE when
// ignore_hidden_files is on. Names that cannot round-trip through the OS
// locale encoding -> IGNORE for download with a warning.
//
// # Discovery errors
//
// An error reading a specific remote directory is recorded against that
// directory (instruction IGNORE with error-string). Its journal etag is
// preserved at "_invalid_" so the next run retries. The sync run as a
// whole succeeds if the error is non-fatal (HTTP 403/404/5xx on
// non-root). Root-level discovery errors and protocol violations are
// fatal: the engine emits a sync-level error signal and the run fails.
package discovery
