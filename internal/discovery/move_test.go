package discovery

import "testing"

func TestDetectMoves_RemoteOriginatedByFileID(t *testing.T) {
	items := []*SyncItem{
		{Path: "old/name.txt", Instruction: InstrRemove, Direction: DirDown, FileID: "fid-1"},
		{Path: "new/name.txt", Instruction: InstrNew, Direction: DirDown, FileID: "fid-1"},
	}
	remoteByPath := map[string]*remoteInput{
		"new/name.txt": {Path: "new/name.txt", FileID: "fid-1"},
	}

	out := detectMoves(items, remoteByPath, noChecksum)

	if len(out) != 1 {
		t.Fatalf("expected 1 item after coalescing, got %d: %+v", len(out), out)
	}
	if out[0].Instruction != InstrRename || out[0].RenameFrom != "old/name.txt" || out[0].Path != "new/name.txt" {
		t.Fatalf("unexpected rename item: %+v", out[0])
	}
}

func TestDetectMoves_LocalOriginatedBySizeAndChecksum(t *testing.T) {
	items := []*SyncItem{
		{Path: "old.txt", Instruction: InstrRemove, Direction: DirUp, PrevSize: 10, Checksum: "SHA1:samehash"},
		{Path: "new.txt", Instruction: InstrNew, Direction: DirUp, Size: 10},
	}
	// old.txt no longer exists on disk by the time move detection runs, so
	// checksumOf is only ever called for the live candidate, new.txt; the
	// removed side is compared against its journal-recorded Checksum.
	checksumOf := func(p string) (string, error) {
		if p == "old.txt" {
			t.Fatalf("checksumOf called on removed path %q, which no longer exists on disk", p)
		}
		return "SHA1:samehash", nil
	}

	out := detectMoves(items, map[string]*remoteInput{}, checksumOf)

	if len(out) != 1 || out[0].Instruction != InstrRename {
		t.Fatalf("expected coalesced rename, got %+v", out)
	}
	if out[0].RenameFrom != "old.txt" || out[0].Path != "new.txt" {
		t.Fatalf("unexpected rename endpoints: %+v", out[0])
	}
}

func TestDetectMoves_DuplicateFileIDInOtherDirectoryIsNotPaired(t *testing.T) {
	items := []*SyncItem{
		{Path: "a/old.txt", Instruction: InstrRemove, Direction: DirDown, FileID: "dup"},
		{Path: "b/new.txt", Instruction: InstrNew, Direction: DirDown, FileID: "dup"},
	}
	// the id is still live at a third location, so pairing a/old.txt with
	// b/new.txt (a different directory) is ambiguous and refused: both
	// items must survive as a plain REMOVE and NEW.
	remoteByPath := map[string]*remoteInput{
		"b/new.txt":    {Path: "b/new.txt", FileID: "dup"},
		"c/third.txt":  {Path: "c/third.txt", FileID: "dup"},
	}

	out := detectMoves(items, remoteByPath, noChecksum)

	var renamed bool
	for _, it := range out {
		if it.Instruction == InstrRename {
			renamed = true
		}
	}
	if renamed {
		t.Fatalf("expected no rename pairing for an ambiguous duplicate fileid, got %+v", out)
	}
	if len(out) != 2 {
		t.Fatalf("expected the REMOVE and NEW to survive unpaired, got %+v", out)
	}
}

func TestDetectMoves_NoCandidateLeavesPlainRemoveAndNew(t *testing.T) {
	items := []*SyncItem{
		{Path: "old.txt", Instruction: InstrRemove, Direction: DirDown, FileID: "fid-a"},
		{Path: "unrelated.txt", Instruction: InstrNew, Direction: DirDown, FileID: "fid-b"},
	}
	out := detectMoves(items, map[string]*remoteInput{"unrelated.txt": {Path: "unrelated.txt", FileID: "fid-b"}}, noChecksum)

	if len(out) != 2 {
		t.Fatalf("expected both items to survive unpaired, got %+v", out)
	}
}
