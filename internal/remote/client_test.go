package remote

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	responses map[string]*Response
	calls     []*Request
}

func (f *fakeTransport) Do(_ context.Context, req *Request) (*Response, error) {
	f.calls = append(f.calls, req)
	key := req.Method + " " + req.Path
	if resp, ok := f.responses[key]; ok {
		return resp, nil
	}
	return &Response{StatusCode: 404, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func bodyResp(status int, body string, headers map[string]string) *Response {
	return &Response{StatusCode: status, Headers: headers, Body: io.NopCloser(strings.NewReader(body))}
}

const sampleMultiStatus = `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns">
  <d:response>
    <d:href>/remote.php/dav/files/alice/docs/</d:href>
    <d:propstat><d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>
  </d:response>
  <d:response>
    <d:href>/remote.php/dav/files/alice/docs/a.txt</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype/>
        <d:getcontentlength>16</d:getcontentlength>
        <d:getetag>"etag-a"</d:getetag>
        <oc:id>00000001ocabc</oc:id>
        <oc:checksums><oc:checksum>SHA1:56900fb1d337cf7237ff766276b9c1e8ce507427</oc:checksum></oc:checksums>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

func TestPropfindDepth1_DecodesEntries(t *testing.T) {
	ft := &fakeTransport{responses: map[string]*Response{
		"PROPFIND docs": bodyResp(207, sampleMultiStatus, nil),
	}}
	c := New(ft)

	entries, err := c.PropfindDepth1(context.Background(), "docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.txt", entries[0].Name)
	require.False(t, entries[0].IsDir)
	require.Equal(t, "etag-a", entries[0].ETag)
	require.Equal(t, int64(16), entries[0].Size)
	require.Contains(t, entries[0].Checksums, "SHA1:56900fb1d337cf7237ff766276b9c1e8ce507427")
}

func TestPropfindDepth1_Non207IsClassified(t *testing.T) {
	ft := &fakeTransport{responses: map[string]*Response{
		"PROPFIND missing": bodyResp(404, "not found", nil),
	}}
	c := New(ft)

	_, err := c.PropfindDepth1(context.Background(), "missing")
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, ClassNormal, statusErr.Class)
}

func TestPropfindDepth1_200InsteadOf207IsProtocolError(t *testing.T) {
	ft := &fakeTransport{responses: map[string]*Response{
		"PROPFIND weird": bodyResp(200, "oops", nil),
	}}
	c := New(ft)

	_, err := c.PropfindDepth1(context.Background(), "weird")
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestPropfindDepth1_RootFailureIsFatal(t *testing.T) {
	ft := &fakeTransport{responses: map[string]*Response{
		"PROPFIND ": bodyResp(500, "boom", nil),
	}}
	c := New(ft)

	_, err := c.PropfindDepth1(context.Background(), "")
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, ClassFatal, statusErr.Class)
}

func TestGet_ExposesChecksumHeaders(t *testing.T) {
	ft := &fakeTransport{responses: map[string]*Response{
		"GET a.txt": bodyResp(200, "AAAAAAAAAAAAAAAA", map[string]string{
			"OC-Checksum": "SHA1:56900fb1d337cf7237ff766276b9c1e8ce507427",
			"OC-ETag":     `"etag-a"`,
			"OC-FileId":   "fid-1",
		}),
	}}
	c := New(ft)

	res, err := c.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "SHA1:56900fb1d337cf7237ff766276b9c1e8ce507427", res.OCChecksum)
	require.Equal(t, "etag-a", res.ETag)
}

func TestMkCol_Tolerates405(t *testing.T) {
	ft := &fakeTransport{responses: map[string]*Response{
		"MKCOL existing": bodyResp(405, "", nil),
	}}
	c := New(ft)
	require.NoError(t, c.MkCol(context.Background(), "existing"))
}

func TestClassifyStatus(t *testing.T) {
	require.Equal(t, ClassSuccess, ClassifyStatus(204, false))
	require.Equal(t, ClassQuota, ClassifyStatus(507, false))
	require.Equal(t, ClassFatal, ClassifyStatus(404, true))
	require.Equal(t, ClassNormal, ClassifyStatus(404, false))
	require.Equal(t, ClassSoft, ClassifyStatus(503, false))
}

func TestChunkOffsets_CoversWholeFile(t *testing.T) {
	chunks := ChunkOffsets(25, 10)
	require.Len(t, chunks, 3)
	require.Equal(t, int64(0), chunks[0].Offset)
	require.Equal(t, int64(10), chunks[0].Size)
	require.Equal(t, int64(20), chunks[2].Offset)
	require.Equal(t, int64(5), chunks[2].Size)
}

func TestChunkedUpload_FinalizeSendsExpectedHeaders(t *testing.T) {
	ft := &fakeTransport{responses: map[string]*Response{
		"MKCOL uploads/xfer-1":         bodyResp(201, "", nil),
		"MOVE uploads/xfer-1/.file":    bodyResp(201, "", nil),
	}}
	c := New(ft)
	upload := NewChunkedUpload(c, "docs/big.bin", "xfer-1", 1024)

	require.NoError(t, upload.EnsureSession(context.Background()))
	require.NoError(t, upload.Finalize(context.Background(), 4096, 1700000000))

	var moveReq *Request
	for _, call := range ft.calls {
		if call.Method == "MOVE" {
			moveReq = call
		}
	}
	require.NotNil(t, moveReq)
	require.Equal(t, "4096", moveReq.Headers["OC-Total-Length"])
	require.Equal(t, "docs/big.bin", moveReq.Headers["Destination"])
}
