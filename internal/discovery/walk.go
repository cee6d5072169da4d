package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oc-sync/davsync/internal/caps"
	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
	"github.com/oc-sync/davsync/internal/remote"
)

// Inputs bundles everything one discovery walk needs.
type Inputs struct {
	LocalRoot  string
	Journal    *journal.Journal
	Client     *remote.Client
	Caps       *caps.Capabilities
	Ignore     *fsabs.IgnoreList
	Checksums  *fsabs.ChecksumCache
	Options    caps.Options
}

// Walk performs one full discovery pass: recursively fetches the remote
// tree (skipping PROPFIND for a directory whose cached journal etag still
// matches what its parent listing reported), enumerates the local tree,
// loads the journal snapshot, and reconciles all three into a flat
// Result. A fatal error (root PROPFIND failure, protocol violation at the
// root) is returned as err; subtree errors are collected into
// Result.SoftErrors and otherwise do not fail the run.
func Walk(ctx context.Context, in *Inputs) (*Result, error) {
	localEntries, err := fsabs.Enumerate(in.LocalRoot, in.Ignore, in.Options.IgnoreHiddenFiles)
	if err != nil {
		return nil, fmt.Errorf("enumerate local tree: %w", err)
	}
	localByPath := make(map[string]*localInput, len(localEntries))
	for _, e := range localEntries {
		localByPath[e.Path] = &localInput{Path: e.Path, IsDir: e.IsDir, Size: e.Size, ModTime: e.ModTime}
	}

	records, err := in.Journal.GetAllFileRecords()
	if err != nil {
		return nil, fmt.Errorf("load journal snapshot: %w", err)
	}

	remoteByPath := map[string]*remoteInput{}
	softErrors := map[string]string{}
	if _, err := fetchRemoteSubtree(ctx, in, "", records, remoteByPath, softErrors, true); err != nil {
		return nil, err
	}

	selectiveBlack, err := in.Journal.GetSelectiveSyncList(journal.BlackList)
	if err != nil {
		return nil, fmt.Errorf("load selective sync blacklist: %w", err)
	}

	allNames := map[string]struct{}{}
	for p := range localByPath {
		allNames[p] = struct{}{}
	}
	for p := range remoteByPath {
		allNames[p] = struct{}{}
	}
	for p := range records {
		allNames[p] = struct{}{}
	}

	checksumOf := func(relPath string) (string, error) {
		local := localByPath[relPath]
		if local == nil {
			return "", fmt.Errorf("checksum requested for non-local path %s", relPath)
		}
		algo := "SHA1"
		if in.Caps != nil {
			algo = in.Caps.ChecksumAlgo()
		}
		fullPath := filepath.Join(in.LocalRoot, filepath.FromSlash(relPath))
		return in.Checksums.Checksum(fullPath, algo, local.Size, local.ModTime)
	}

	items := make([]*SyncItem, 0, len(allNames))
	for name := range allNames {
		if excludedBySelectiveSync(name, selectiveBlack) {
			items = append(items, selectiveSyncItem(name, localByPath[name], records[name]))
			continue
		}
		if in.Caps != nil && in.Caps.IsInvalidName(leafName(name)) {
			items = append(items, &SyncItem{Path: name, Instruction: InstrIgnore, Error: "invalid filename"})
			continue
		}
		if in.Options.IgnoreHiddenFiles && isHiddenPath(name) {
			items = append(items, &SyncItem{Path: name, Instruction: InstrIgnore, Error: "hidden file"})
			continue
		}

		item := classifyName(name, localByPath[name], remoteByPath[name], records[name], checksumOf)
		items = append(items, item)
	}

	items = detectMoves(items, remoteByPath, checksumOf)
	items = dropNoOps(items)

	for dir, errMsg := range softErrors {
		items = append(items, &SyncItem{Path: dir, Instruction: InstrIgnore, IsDir: true, Error: errMsg})
		if err := in.Journal.ScheduleForRemoteDiscovery(dir); err != nil {
			return nil, fmt.Errorf("preserve invalid etag for failed subtree %s: %w", dir, err)
		}
	}

	return &Result{Items: items, SoftErrors: softErrors}, nil
}

// dropNoOps removes InstrNone entries after move detection (which only
// pairs REMOVE and NEW items and leaves NONE entries alone); NONE carries
// no propagation work so keeping it in the final item list only adds
// noise.
func dropNoOps(items []*SyncItem) []*SyncItem {
	out := make([]*SyncItem, 0, len(items))
	for _, it := range items {
		if it.Instruction == InstrNone {
			continue
		}
		out = append(out, it)
	}
	return out
}

// fetchRemoteSubtree recursively walks dirPath, applying the
// journal-etag-cache optimization described in spec §4.4: a directory is
// only re-PROPFIND'd when its remote etag (as reported by its parent's
// listing, or unconditionally for the root) differs from the journal's
// cached etag for that path. It returns the directory's own etag, as
// discovered from its parent's listing (empty for the root).
func fetchRemoteSubtree(ctx context.Context, in *Inputs, dirPath string, records map[string]*journal.FileRecord, out map[string]*remoteInput, softErrors map[string]string, isRoot bool) (string, error) {
	cached := records[dirPath]
	var childEntries []remote.DirEntry

	needsFetch := isRoot || cached == nil || cached.ETag == journal.InvalidETag
	var knownEtag string
	if !isRoot {
		knownEtag = remoteEtagFromParent(out, dirPath)
		if !needsFetch {
			needsFetch = cached.ETag != knownEtag
		}
	}

	if !needsFetch {
		return knownEtag, useJournalListing(dirPath, records, out)
	}

	entries, err := in.Client.PropfindDepth1(ctx, dirPath)
	if err != nil {
		var statusErr *remote.StatusError
		var protoErr *remote.ProtocolError
		subtreeErr := (errors.As(err, &statusErr) && statusErr.Class != remote.ClassFatal) || errors.As(err, &protoErr)
		if !isRoot && subtreeErr {
			softErrors[dirPath] = err.Error()
			return knownEtag, nil
		}
		return "", fmt.Errorf("discover directory %q: %w", dirPath, err)
	}
	childEntries = entries

	for _, e := range childEntries {
		childPath := joinRel(dirPath, e.Name)
		out[childPath] = &remoteInput{
			Path: childPath, IsDir: e.IsDir, Size: e.Size,
			ModTime: e.ModTime.Unix(), ETag: e.ETag, FileID: e.FileID,
			Checksum: firstChecksum(e.Checksums),
		}
		if e.IsDir {
			if _, err := fetchRemoteSubtree(ctx, in, childPath, records, out, softErrors, false); err != nil {
				return "", err
			}
		}
	}
	return knownEtag, nil
}

// useJournalListing replays the journal's cached children for dirPath
// into out without a network call, for the etag-unchanged fast path.
func useJournalListing(dirPath string, records map[string]*journal.FileRecord, out map[string]*remoteInput) error {
	prefix := dirPath
	for p, rec := range records {
		if !isDirectChild(prefix, p) {
			continue
		}
		out[p] = &remoteInput{
			Path: p, IsDir: rec.Type == journal.FileTypeDir, Size: rec.Size,
			ModTime: rec.ModTime, ETag: rec.ETag, FileID: rec.FileID, Checksum: rec.Checksum,
		}
		if rec.Type == journal.FileTypeDir {
			if err := useJournalListing(p, records, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func isDirectChild(dir, candidate string) bool {
	if dir == "" {
		return !strings.Contains(candidate, "/")
	}
	if !strings.HasPrefix(candidate, dir+"/") {
		return false
	}
	return !strings.Contains(strings.TrimPrefix(candidate, dir+"/"), "/")
}

func remoteEtagFromParent(out map[string]*remoteInput, p string) string {
	if e, ok := out[p]; ok {
		return e.ETag
	}
	return ""
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func leafName(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func isHiddenPath(p string) bool {
	return strings.HasPrefix(leafName(p), ".")
}

func firstChecksum(sums []string) string {
	if len(sums) == 0 {
		return ""
	}
	return sums[0]
}

func excludedBySelectiveSync(p string, blacklist []string) bool {
	for _, b := range blacklist {
		if p == b || strings.HasPrefix(p, b+"/") {
			return true
		}
	}
	return false
}

func selectiveSyncItem(p string, local *localInput, rec *journal.FileRecord) *SyncItem {
	item := &SyncItem{Path: p, Instruction: InstrIgnore, Error: "excluded by selective sync"}
	if local != nil {
		item.IsDir = local.IsDir
		item.Size = local.Size
		item.ModTime = local.ModTime
	}
	if rec != nil && local != nil && (local.ModTime != rec.ModTime || local.Size != rec.Size) {
		// dirty local copy: retained, not propagated (spec §4.4.5).
		item.Error = "excluded by selective sync (local copy has pending changes, retained)"
		return item
	}
	if local != nil {
		// selective sync only ever removes the local copy; the remote
		// object stays untouched, so this is a DOWN-direction delete
		// (JobDeleteLocal), never a remote delete.
		item.Instruction = InstrRemove
		item.Direction = DirDown
	}
	return item
}
