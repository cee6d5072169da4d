package discovery

import (
	"strings"

	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
)

// localInput is one locally enumerated entry, checksum computed lazily.
type localInput struct {
	Path    string
	IsDir   bool
	Size    int64
	ModTime int64
	Inode   uint64
}

// remoteInput is one remote entry decoded from a PROPFIND response.
type remoteInput struct {
	Path     string
	IsDir    bool
	Size     int64
	ModTime  int64
	ETag     string
	FileID   string
	Checksum string // "" if the server advertised none
}

// classifyName applies the three-way classification table (spec §4.4.1)
// and, when all three are present, the change-detection and
// fake-conflict rules (§4.4.2, §4.4.3) to one name. It never does move
// detection — that happens afterward, across the whole batch, in move.go.
func classifyName(path string, local *localInput, remote *remoteInput, rec *journal.FileRecord, checksumOf func(path string) (string, error)) *SyncItem {
	switch {
	case local == nil && remote == nil && rec != nil:
		return &SyncItem{Path: path, Instruction: InstrRemove, PrevModTime: rec.ModTime, PrevSize: rec.Size}

	case local != nil && remote == nil && rec == nil:
		return &SyncItem{Path: path, Instruction: InstrNew, Direction: DirUp, IsDir: local.IsDir, Size: local.Size, ModTime: local.ModTime}

	case local == nil && remote != nil && rec == nil:
		return &SyncItem{Path: path, Instruction: InstrNew, Direction: DirDown, IsDir: remote.IsDir, Size: remote.Size, ModTime: remote.ModTime, FileID: remote.FileID, ETag: remote.ETag}

	case local != nil && remote == nil && rec != nil:
		// remote-deleted, local still present: the local copy must be
		// removed to converge — a DOWN-direction delete.
		return &SyncItem{Path: path, Instruction: InstrRemove, Direction: DirDown, IsDir: local.IsDir, PrevModTime: rec.ModTime, PrevSize: rec.Size, FileID: rec.FileID}

	case local == nil && remote != nil && rec != nil:
		// local-deleted, remote still present: the remote copy must be
		// removed to converge — an UP-direction delete. Carries the
		// journal's last-known checksum, the only content signature move
		// detection can still compare against once the local file is gone.
		return &SyncItem{Path: path, Instruction: InstrRemove, Direction: DirUp, IsDir: remote.IsDir, PrevModTime: rec.ModTime, PrevSize: rec.Size, FileID: remote.FileID, ETag: remote.ETag, Checksum: rec.Checksum}

	case local != nil && remote != nil && rec == nil:
		// both new, no journal record yet: a size difference, or a server
		// checksum of the local checksum's algorithm that disagrees with
		// it, is a genuine conflict; equal sizes without such a checksum
		// are taken as the same content. A directory existing on both
		// sides with no prior record is just a convergent mkdir, never a
		// conflict.
		if local.IsDir && remote.IsDir {
			return &SyncItem{Path: path, Instruction: InstrNone, IsDir: true}
		}
		differs := local.Size != remote.Size
		if !differs && remote.Checksum != "" {
			if localSum, err := checksumOf(path); err == nil {
				remoteAlgo, _, _ := splitChecksum(remote.Checksum)
				localAlgo, _, _ := splitChecksum(localSum)
				differs = strings.EqualFold(remoteAlgo, localAlgo) && !strings.EqualFold(localSum, remote.Checksum)
			}
		}
		if differs {
			return &SyncItem{Path: path, Instruction: InstrConflict, IsDir: local.IsDir, Size: local.Size, ModTime: local.ModTime, FileID: remote.FileID, ETag: remote.ETag}
		}
		return &SyncItem{Path: path, Instruction: InstrNew, Direction: DirUp, IsDir: local.IsDir, Size: local.Size, ModTime: local.ModTime}

	case local != nil && remote != nil && rec != nil:
		return classifyAllPresent(path, local, remote, rec, checksumOf)

	default:
		return &SyncItem{Path: path, Instruction: InstrNone}
	}
}

func classifyAllPresent(path string, local *localInput, remote *remoteInput, rec *journal.FileRecord, checksumOf func(string) (string, error)) *SyncItem {
	if local.IsDir != remote.IsDir {
		return &SyncItem{Path: path, Instruction: InstrTypeChange, IsDir: remote.IsDir, Size: remote.Size, ModTime: remote.ModTime}
	}

	item := &SyncItem{
		Path: path, IsDir: local.IsDir,
		Size: local.Size, ModTime: local.ModTime,
		PrevSize: rec.Size, PrevModTime: rec.ModTime,
		FileID: remote.FileID, ETag: remote.ETag,
	}

	if local.IsDir {
		if remote.ETag != rec.ETag {
			item.Instruction = InstrUpdateMetadata
		} else {
			item.Instruction = InstrNone
		}
		return item
	}

	localChanged := local.ModTime != rec.ModTime || local.Size != rec.Size
	remoteChanged := remote.ETag != rec.ETag

	switch {
	case !localChanged && !remoteChanged:
		item.Instruction = InstrNone
	case localChanged && !remoteChanged:
		item.Instruction = InstrSync
		item.Direction = DirUp
	case !localChanged && remoteChanged:
		if suppressed, err := fakeConflict(remote, rec, checksumOf, path); err == nil && suppressed {
			item.Instruction = InstrNone
		} else {
			item.Instruction = InstrSync
			item.Direction = DirDown
		}
	default:
		item.Instruction = InstrConflict
		item.Direction = DirNone
	}
	return item
}

// fakeConflict implements spec §4.4.3: a remote etag change that is not
// a real content change must not trigger a download. With no server
// checksum (or one it cannot parse) matching metadata (modtime, size)
// alone suppresses it; with a weak checksum metadata and checksum must
// both match; with a strong checksum a checksum match alone suffices.
func fakeConflict(remote *remoteInput, rec *journal.FileRecord, checksumOf func(string) (string, error), path string) (bool, error) {
	sameMetadata := remote.ModTime == rec.ModTime && remote.Size == rec.Size

	if remote.Checksum == "" {
		return sameMetadata, nil
	}

	algo, _, ok := splitChecksum(remote.Checksum)
	if !ok {
		return sameMetadata, nil
	}

	localSum, err := checksumOf(path)
	if err != nil {
		return false, err
	}

	matches := strings.EqualFold(localSum, remote.Checksum)

	if fsabs.IsWeak(algo) {
		// weak checksum: only suppresses the conflict when metadata also
		// agrees; a modtime mismatch with only a weak-checksum match
		// still triggers a download (§4.4.3 last bullet).
		return sameMetadata && matches, nil
	}

	// strong checksum match suppresses the conflict even if modtime
	// differs (§4.4.3 fourth bullet).
	return matches, nil
}

func splitChecksum(tagged string) (algo, hex string, ok bool) {
	idx := strings.IndexByte(tagged, ':')
	if idx < 0 {
		return "", "", false
	}
	return tagged[:idx], tagged[idx+1:], true
}
