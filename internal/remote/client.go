package remote

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DirEntry is one decoded PROPFIND response entry, relative to the
// directory that was queried.
type DirEntry struct {
	Name        string
	IsDir       bool
	Size        int64
	ModTime     time.Time
	ETag        string
	FileID      string
	Permissions string
	Checksums   []string
}

// Client is the high-level WebDAV-like client the discovery and
// propagator packages call through.
type Client struct {
	transport Transport
}

// New wraps transport in a Client.
func New(transport Transport) *Client {
	return &Client{transport: transport}
}

// PropfindDepth1 lists dirPath's immediate children. An empty dirPath
// queries the sync root itself.
func (c *Client) PropfindDepth1(ctx context.Context, dirPath string) ([]DirEntry, error) {
	resp, err := c.transport.Do(ctx, &Request{
		Method: "PROPFIND",
		Path:   dirPath,
		Headers: map[string]string{
			"Depth":        "1",
			"Content-Type": "application/xml",
		},
		Body: strings.NewReader(propfindBody),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	isRoot := dirPath == "" || dirPath == "/"
	if resp.StatusCode == 200 {
		return nil, &ProtocolError{Path: dirPath, Message: "PROPFIND answered 200 instead of 207 Multi-Status"}
	}
	if resp.StatusCode != 207 {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewStatusError(resp.StatusCode, dirPath, string(body), isRoot)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read propfind body for %s: %w", dirPath, err)
	}

	var ms multiStatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, &ProtocolError{Path: dirPath, Message: fmt.Sprintf("malformed multistatus xml: %v", err)}
	}

	entries := make([]DirEntry, 0, len(ms.Responses))
	for i, r := range ms.Responses {
		if i == 0 {
			// first entry is always the queried collection itself
			continue
		}
		entries = append(entries, decodeEntry(r))
	}
	return entries, nil
}

func decodeEntry(r davEntry) DirEntry {
	props := r.props()
	href := strings.TrimSuffix(r.Href, "/")
	name := href
	if idx := strings.LastIndex(href, "/"); idx >= 0 {
		name = href[idx+1:]
	}

	size, _ := strconv.ParseInt(props.ContentLength, 10, 64)
	if size == 0 && props.Size != "" {
		size, _ = strconv.ParseInt(props.Size, 10, 64)
	}
	modTime, _ := time.Parse(time.RFC1123, props.LastModified)

	return DirEntry{
		Name:        name,
		IsDir:       r.IsCollection(),
		Size:        size,
		ModTime:     modTime,
		ETag:        strings.Trim(props.ETag, `"`),
		FileID:      props.FileID,
		Permissions: props.Permissions,
		Checksums:   props.Checksums.Checksum,
	}
}

// GetResult is the outcome of a GET, with the checksum headers discovery
// and download verification need.
type GetResult struct {
	Body        io.ReadCloser
	OCChecksum  string
	ContentMD5  string
	ETag        string
	FileID      string
}

// Get streams path's content.
func (c *Client) Get(ctx context.Context, path string) (*GetResult, error) {
	resp, err := c.transport.Do(ctx, &Request{Method: "GET", Path: path})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, NewStatusError(resp.StatusCode, path, string(body), false)
	}
	return &GetResult{
		Body:       resp.Body,
		OCChecksum: resp.Header("OC-Checksum"),
		ContentMD5: resp.Header("Content-MD5"),
		ETag:       strings.Trim(resp.Header("OC-ETag"), `"`),
		FileID:     resp.Header("OC-FileId"),
	}, nil
}

// PutResult is the outcome of a simple (non-chunked) PUT.
type PutResult struct {
	ETag   string
	FileID string
}

// Put uploads content to path with the given modtime and checksum
// headers (spec §6 "Wire details").
func (c *Client) Put(ctx context.Context, path string, content io.Reader, size, modTime int64, checksum string) (*PutResult, error) {
	resp, err := c.transport.Do(ctx, &Request{
		Method: "PUT",
		Path:   path,
		Headers: map[string]string{
			"X-OC-Mtime":   strconv.FormatInt(modTime, 10),
			"OC-Checksum":  checksum,
			"Content-Type": "application/octet-stream",
		},
		Body:          content,
		ContentLength: size,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 && resp.StatusCode != 201 && resp.StatusCode != 204 {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewStatusError(resp.StatusCode, path, string(body), false)
	}
	return &PutResult{
		ETag:   strings.Trim(resp.Header("OC-ETag"), `"`),
		FileID: resp.Header("OC-FileId"),
	}, nil
}

// MkCol creates path as a collection.
func (c *Client) MkCol(ctx context.Context, path string) error {
	resp, err := c.transport.Do(ctx, &Request{Method: "MKCOL", Path: path})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 && resp.StatusCode != 405 {
		body, _ := io.ReadAll(resp.Body)
		return NewStatusError(resp.StatusCode, path, string(body), false)
	}
	return nil
}

// Move moves src to dst. extraHeaders carries the chunk-finalize-specific
// OC-Total-Length/X-OC-Mtime headers when non-nil.
func (c *Client) Move(ctx context.Context, src, dst string, overwrite bool, extraHeaders map[string]string) error {
	headers := map[string]string{
		"Destination": dst,
		"Overwrite":   "F",
	}
	if overwrite {
		headers["Overwrite"] = "T"
	}
	for k, v := range extraHeaders {
		headers[k] = v
	}

	resp, err := c.transport.Do(ctx, &Request{Method: "MOVE", Path: src, Headers: headers})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 && resp.StatusCode != 204 {
		body, _ := io.ReadAll(resp.Body)
		return NewStatusError(resp.StatusCode, src, string(body), false)
	}
	return nil
}

// FetchCapabilities issues a plain GET against path (typically the
// server's capabilities JSON endpoint) and returns the raw response body
// for caps.ParseCapabilities to decode.
func (c *Client) FetchCapabilities(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.transport.Do(ctx, &Request{
		Method:  "GET",
		Path:    path,
		Headers: map[string]string{"Accept": "application/json", "OCS-APIRequest": "true"},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewStatusError(resp.StatusCode, path, string(body), false)
	}
	return io.ReadAll(resp.Body)
}

// Delete removes path.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.transport.Do(ctx, &Request{Method: "DELETE", Path: path})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 204 && resp.StatusCode != 404 {
		body, _ := io.ReadAll(resp.Body)
		return NewStatusError(resp.StatusCode, path, string(body), false)
	}
	return nil
}
