package journal

import (
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j := New(dbPath)
	if err := j.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestFileRecord_SetGetDelete(t *testing.T) {
	j := openTestJournal(t)

	rec := &FileRecord{
		Path:     "alice/docs/a.txt",
		Inode:    42,
		ModTime:  1000,
		Size:     10,
		FileID:   "fid-1",
		ETag:     "etag1",
		Checksum: "SHA1:abc",
		Type:     FileTypeFile,
	}
	if err := j.SetFileRecord(rec); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetFileRecord(rec.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.ETag != "etag1" || got.FileID != "fid-1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := j.DeleteFileRecord(rec.Path); err != nil {
		t.Fatal(err)
	}
	got, err = j.GetFileRecord(rec.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected record to be gone after delete")
	}
}

func TestGetFilesBelow_ReturnsSubtreeOnly(t *testing.T) {
	j := openTestJournal(t)

	paths := []string{
		"alice/docs",
		"alice/docs/a.txt",
		"alice/docs/sub/b.txt",
		"alice/other.txt",
	}
	for _, p := range paths {
		if err := j.SetFileRecord(&FileRecord{Path: p, Type: FileTypeFile}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := j.GetFilesBelow("alice/docs")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records below alice/docs, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Path == "alice/other.txt" {
			t.Fatalf("unexpected path outside subtree: %s", r.Path)
		}
	}
}

func TestDeleteSubtree_RemovesPrefixAndChildren(t *testing.T) {
	j := openTestJournal(t)

	for _, p := range []string{"a/dir", "a/dir/x", "a/dir/y/z", "a/keep"} {
		if err := j.SetFileRecord(&FileRecord{Path: p, Type: FileTypeFile}); err != nil {
			t.Fatal(err)
		}
	}

	if err := j.DeleteSubtree("a/dir"); err != nil {
		t.Fatal(err)
	}

	recs, err := j.GetFilesBelow("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Path != "a/keep" {
		t.Fatalf("expected only a/keep to survive, got %+v", recs)
	}
}

func TestScheduleForRemoteDiscovery_InvalidatesAncestors(t *testing.T) {
	j := openTestJournal(t)

	for _, p := range []string{"alice", "alice/docs", "alice/docs/a.txt"} {
		if err := j.SetFileRecord(&FileRecord{Path: p, ETag: "stable", Type: FileTypeDir}); err != nil {
			t.Fatal(err)
		}
	}

	if err := j.ScheduleForRemoteDiscovery("alice/docs/a.txt"); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{"alice", "alice/docs", "alice/docs/a.txt"} {
		got, err := j.GetFileRecord(p)
		if err != nil {
			t.Fatal(err)
		}
		if got.ETag != InvalidETag {
			t.Fatalf("expected %s to be invalidated, got etag %q", p, got.ETag)
		}
	}
}

func TestSelectiveSyncList_RoundTrip(t *testing.T) {
	j := openTestJournal(t)

	want := []string{"alice/private", "bob/scratch"}
	if err := j.SetSelectiveSyncList(BlackList, want); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetSelectiveSyncList(BlackList)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}

	if err := j.SetSelectiveSyncList(BlackList, []string{"only-one"}); err != nil {
		t.Fatal(err)
	}
	got, err = j.GetSelectiveSyncList(BlackList)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "only-one" {
		t.Fatalf("expected list to be fully replaced, got %+v", got)
	}
}

func TestUploadInfo_SetGetClear(t *testing.T) {
	j := openTestJournal(t)

	info := &UploadInfo{
		Path:        "alice/big.bin",
		TransferID:  "xfer-1",
		ChunkOffset: 1024,
		ChunkSize:   4096,
		Size:        8192,
		Valid:       true,
	}
	if err := j.SetUploadInfo(info); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetUploadInfo(info.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.TransferID != "xfer-1" {
		t.Fatalf("unexpected upload info: %+v", got)
	}

	if err := j.ClearUploadInfo(info.Path); err != nil {
		t.Fatal(err)
	}
	got, err = j.GetUploadInfo(info.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected upload info to be cleared")
	}
}

func TestConflictRecord_SetGetListDelete(t *testing.T) {
	j := openTestJournal(t)

	rec := &ConflictRecord{
		OriginalPath: "alice/report.docx",
		ConflictPath: "alice/report (conflicted copy 2026-08-06 120000).docx",
		BaseFileID:   "fid-9",
		BaseETag:     "etag9",
	}
	if err := j.SetConflictRecord(rec); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetConflictRecord(rec.OriginalPath)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ConflictPath != rec.ConflictPath {
		t.Fatalf("unexpected conflict record: %+v", got)
	}

	all, err := j.ListConflictRecords()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 conflict record, got %d", len(all))
	}

	if err := j.DeleteConflictRecord(rec.OriginalPath); err != nil {
		t.Fatal(err)
	}
	all, err = j.ListConflictRecords()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected conflict record to be gone, got %d", len(all))
	}
}

func TestErrorBlacklist_WipeKeepsPermanent(t *testing.T) {
	j := openTestJournal(t)

	soft := &BlacklistEntry{Path: "a.txt", Category: ErrorSoft, RetryCount: 2}
	fatal := &BlacklistEntry{Path: "b.txt", Category: ErrorFatal, Permanent: true, Message: "invalid filename"}
	if err := j.SetBlacklistEntry(soft); err != nil {
		t.Fatal(err)
	}
	if err := j.SetBlacklistEntry(fatal); err != nil {
		t.Fatal(err)
	}

	if err := j.WipeErrorBlacklist(); err != nil {
		t.Fatal(err)
	}

	entries, err := j.ListBlacklistEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path != "b.txt" {
		t.Fatalf("expected only the permanent entry to survive, got %+v", entries)
	}
}

func TestJournal_Open_LocksAgainstSecondWriter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	first := New(dbPath)
	if err := first.Open(); err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	second := New(dbPath)
	if err := second.Open(); err == nil {
		t.Fatal("expected second Open to fail while first journal holds the lock")
	}
}
