package discovery

import (
	"fmt"
	"testing"

	"github.com/oc-sync/davsync/internal/journal"
)

func noChecksum(string) (string, error) {
	return "", fmt.Errorf("checksum not expected in this test")
}

func TestClassifyName_ThreeWayTable(t *testing.T) {
	cases := []struct {
		name   string
		local  *localInput
		remote *remoteInput
		rec    *journal.FileRecord
		want   Instruction
		dir    Direction
	}{
		{"journal only -> REMOVE", nil, nil, &journal.FileRecord{Path: "a"}, InstrRemove, DirNone},
		{"local only -> NEW up", &localInput{Path: "a", Size: 1}, nil, nil, InstrNew, DirUp},
		{"remote only -> NEW down", nil, &remoteInput{Path: "a", Size: 1}, nil, InstrNew, DirDown},
		{"local+journal, remote gone -> REMOVE down", &localInput{Path: "a"}, nil, &journal.FileRecord{Path: "a"}, InstrRemove, DirDown},
		{"remote+journal, local gone -> REMOVE up", nil, &remoteInput{Path: "a"}, &journal.FileRecord{Path: "a"}, InstrRemove, DirUp},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := classifyName("a", tc.local, tc.remote, tc.rec, noChecksum)
			if item.Instruction != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, item.Instruction)
			}
			if item.Direction != tc.dir {
				t.Fatalf("expected direction %v, got %v", tc.dir, item.Direction)
			}
		})
	}
}

func TestClassifyName_BothNewSameSizeIsUpload(t *testing.T) {
	local := &localInput{Path: "a", Size: 10}
	remote := &remoteInput{Path: "a", Size: 10}
	item := classifyName("a", local, remote, nil, noChecksum)
	if item.Instruction != InstrNew || item.Direction != DirUp {
		t.Fatalf("expected NEW up, got %s/%v", item.Instruction, item.Direction)
	}
}

func TestClassifyName_BothNewDifferentSizeIsConflict(t *testing.T) {
	local := &localInput{Path: "a", Size: 10}
	remote := &remoteInput{Path: "a", Size: 20}
	item := classifyName("a", local, remote, nil, noChecksum)
	if item.Instruction != InstrConflict {
		t.Fatalf("expected CONFLICT, got %s", item.Instruction)
	}
}

func TestClassifyAllPresent_NeitherChanged(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 10, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 100, Size: 10}
	remote := &remoteInput{Path: "a", ModTime: 100, Size: 10, ETag: "e1"}
	item := classifyName("a", local, remote, rec, noChecksum)
	if item.Instruction != InstrNone {
		t.Fatalf("expected NONE, got %s", item.Instruction)
	}
}

func TestClassifyAllPresent_LocalChangedOnly(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 10, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 200, Size: 12}
	remote := &remoteInput{Path: "a", ModTime: 100, Size: 10, ETag: "e1"}
	item := classifyName("a", local, remote, rec, noChecksum)
	if item.Instruction != InstrSync || item.Direction != DirUp {
		t.Fatalf("expected SYNC up, got %s/%v", item.Instruction, item.Direction)
	}
}

func TestClassifyAllPresent_RemoteChangedOnly_NoChecksum_SyncsDown(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 10, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 100, Size: 10}
	remote := &remoteInput{Path: "a", ModTime: 200, Size: 10, ETag: "e2"}
	item := classifyName("a", local, remote, rec, noChecksum)
	if item.Instruction != InstrSync || item.Direction != DirDown {
		t.Fatalf("expected SYNC down, got %s/%v", item.Instruction, item.Direction)
	}
}

func TestClassifyAllPresent_BothChangedIsConflict(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 10, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 150, Size: 11}
	remote := &remoteInput{Path: "a", ModTime: 200, Size: 12, ETag: "e2"}
	item := classifyName("a", local, remote, rec, noChecksum)
	if item.Instruction != InstrConflict || item.Direction != DirNone {
		t.Fatalf("expected CONFLICT/None, got %s/%v", item.Instruction, item.Direction)
	}
}

func TestFakeConflict_SameMetadataStrongChecksumMatch_SuppressesDownload(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 16, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 100, Size: 16}
	remote := &remoteInput{Path: "a", ModTime: 100, Size: 16, ETag: "e2", Checksum: "SHA1:56900fb1d337cf7237ff766276b9c1e8ce507427"}
	checksumOf := func(string) (string, error) { return "SHA1:56900fb1d337cf7237ff766276b9c1e8ce507427", nil }

	item := classifyName("a", local, remote, rec, checksumOf)
	if item.Instruction != InstrNone {
		t.Fatalf("expected NONE (fake conflict suppressed), got %s", item.Instruction)
	}
}

func TestFakeConflict_ModtimeDiffersButStrongChecksumMatches_StillSuppressed(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 16, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 100, Size: 16}
	// remote modtime differs from journal -> normally would be remote-changed,
	// but §4.4.3 rule 4 says a strong checksum match still suppresses it.
	remote := &remoteInput{Path: "a", ModTime: 999, Size: 16, ETag: "e2", Checksum: "SHA256:deadbeef"}
	checksumOf := func(string) (string, error) { return "SHA256:deadbeef", nil }

	item := classifyName("a", local, remote, rec, checksumOf)
	if item.Instruction != InstrNone {
		t.Fatalf("expected NONE, got %s", item.Instruction)
	}
}

func TestFakeConflict_WeakChecksumMismatch_SyncsDown(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 16, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 100, Size: 16}
	remote := &remoteInput{Path: "a", ModTime: 100, Size: 16, ETag: "e2", Checksum: "ADLER32:aaaa"}
	checksumOf := func(string) (string, error) { return "ADLER32:bbbb", nil }

	item := classifyName("a", local, remote, rec, checksumOf)
	if item.Instruction != InstrSync || item.Direction != DirDown {
		t.Fatalf("expected SYNC down on weak checksum mismatch, got %s/%v", item.Instruction, item.Direction)
	}
}

func TestFakeConflict_WeakChecksumMatchesButModtimeDiffers_StillSyncsDown(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 16, ETag: "e1"}
	local := &localInput{Path: "a", ModTime: 100, Size: 16}
	remote := &remoteInput{Path: "a", ModTime: 999, Size: 16, ETag: "e2", Checksum: "ADLER32:aaaa"}
	checksumOf := func(string) (string, error) { return "ADLER32:aaaa", nil }

	item := classifyName("a", local, remote, rec, checksumOf)
	if item.Instruction != InstrSync || item.Direction != DirDown {
		t.Fatalf("expected SYNC down (weak match but modtime differs), got %s/%v", item.Instruction, item.Direction)
	}
}

func TestClassifyAllPresent_TypeChange(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ModTime: 100, Size: 10, ETag: "e1"}
	local := &localInput{Path: "a", IsDir: false, ModTime: 100, Size: 10}
	remote := &remoteInput{Path: "a", IsDir: true, ETag: "e2"}
	item := classifyName("a", local, remote, rec, noChecksum)
	if item.Instruction != InstrTypeChange {
		t.Fatalf("expected TYPE_CHANGE, got %s", item.Instruction)
	}
}

func TestClassifyAllPresent_DirectoryPermissionOnlyChange_UpdatesMetadata(t *testing.T) {
	rec := &journal.FileRecord{Path: "a", ETag: "e1"}
	local := &localInput{Path: "a", IsDir: true}
	remote := &remoteInput{Path: "a", IsDir: true, ETag: "e2"}
	item := classifyName("a", local, remote, rec, noChecksum)
	if item.Instruction != InstrUpdateMetadata {
		t.Fatalf("expected UPDATE_METADATA, got %s", item.Instruction)
	}
}
