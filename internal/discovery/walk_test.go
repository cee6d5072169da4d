package discovery

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oc-sync/davsync/internal/caps"
	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
	"github.com/oc-sync/davsync/internal/remote"
)

type fakeTransport struct {
	byPath map[string]string // dirPath -> multistatus XML body
}

func (f *fakeTransport) Do(_ context.Context, req *remote.Request) (*remote.Response, error) {
	if req.Method != "PROPFIND" {
		return &remote.Response{StatusCode: 204, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	body, ok := f.byPath[req.Path]
	if !ok {
		return &remote.Response{StatusCode: 404, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return &remote.Response{StatusCode: 207, Body: io.NopCloser(strings.NewReader(body))}, nil
}

func multistatus(self string, children ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><d:multistatus xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns">`)
	b.WriteString(`<d:response><d:href>` + self + `</d:href><d:propstat><d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`)
	for _, c := range children {
		b.WriteString(c)
	}
	b.WriteString(`</d:multistatus>`)
	return b.String()
}

func fileEntry(href, etag, fileid string, size int64) string {
	return `<d:response><d:href>` + href + `</d:href><d:propstat><d:prop>
		<d:resourcetype/>
		<d:getcontentlength>` + itoa(size) + `</d:getcontentlength>
		<d:getetag>"` + etag + `"</d:getetag>
		<oc:id>` + fileid + `</oc:id>
	</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func newTestJournal(t *testing.T) *journal.Journal {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j := journal.New(dbPath)
	if err := j.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestWalk_NewRemoteFileYieldsDownload(t *testing.T) {
	localRoot := t.TempDir()
	j := newTestJournal(t)

	ft := &fakeTransport{byPath: map[string]string{
		"": multistatus("/", fileEntry("/new.txt", "etag-1", "fid-1", 5)),
	}}

	in := &Inputs{
		LocalRoot: localRoot,
		Journal:   j,
		Client:    remote.New(ft),
		Caps:      &caps.Capabilities{},
		Ignore:    loadedIgnore(t, localRoot),
		Checksums: newChecksumCache(t),
		Options:   caps.DefaultOptions(),
	}

	result, err := Walk(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	var found *SyncItem
	for _, it := range result.Items {
		if it.Path == "new.txt" {
			found = it
		}
	}
	if found == nil {
		t.Fatalf("expected new.txt in result, got %+v", result.Items)
	}
	if found.Instruction != InstrNew || found.Direction != DirDown {
		t.Fatalf("expected NEW down, got %s/%v", found.Instruction, found.Direction)
	}
}

func TestWalk_LocalOnlyFileYieldsUpload(t *testing.T) {
	localRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(localRoot, "mine.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	j := newTestJournal(t)

	ft := &fakeTransport{byPath: map[string]string{
		"": multistatus("/"),
	}}

	in := &Inputs{
		LocalRoot: localRoot,
		Journal:   j,
		Client:    remote.New(ft),
		Caps:      &caps.Capabilities{},
		Ignore:    loadedIgnore(t, localRoot),
		Checksums: newChecksumCache(t),
		Options:   caps.DefaultOptions(),
	}

	result, err := Walk(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	var found *SyncItem
	for _, it := range result.Items {
		if it.Path == "mine.txt" {
			found = it
		}
	}
	if found == nil {
		t.Fatalf("expected mine.txt in result, got %+v", result.Items)
	}
	if found.Instruction != InstrNew || found.Direction != DirUp {
		t.Fatalf("expected NEW up, got %s/%v", found.Instruction, found.Direction)
	}
}

func TestWalk_UnchangedConvergedFileProducesNoItem(t *testing.T) {
	localRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(localRoot, "same.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(localRoot, "same.txt"))
	if err != nil {
		t.Fatal(err)
	}

	j := newTestJournal(t)
	if err := j.SetFileRecord(&journal.FileRecord{
		Path: "same.txt", ModTime: info.ModTime().Unix(), Size: info.Size(), ETag: "etag-1", Type: journal.FileTypeFile,
	}); err != nil {
		t.Fatal(err)
	}

	ft := &fakeTransport{byPath: map[string]string{
		"": multistatus("/", fileEntry("/same.txt", "etag-1", "fid-1", info.Size())),
	}}

	in := &Inputs{
		LocalRoot: localRoot,
		Journal:   j,
		Client:    remote.New(ft),
		Caps:      &caps.Capabilities{},
		Ignore:    loadedIgnore(t, localRoot),
		Checksums: newChecksumCache(t),
		Options:   caps.DefaultOptions(),
	}

	result, err := Walk(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range result.Items {
		if it.Path == "same.txt" {
			t.Fatalf("expected no item for an unchanged converged file, got %+v", it)
		}
	}
}

func loadedIgnore(t *testing.T, root string) *fsabs.IgnoreList {
	t.Helper()
	l := fsabs.NewIgnoreList(root)
	l.Load()
	return l
}

func newChecksumCache(t *testing.T) *fsabs.ChecksumCache {
	t.Helper()
	c, err := fsabs.NewChecksumCache(64)
	if err != nil {
		t.Fatal(err)
	}
	return c
}
