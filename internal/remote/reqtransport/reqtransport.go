// Package reqtransport is the default remote.Transport, built on
// github.com/imroc/req/v3, grounded on the teacher's
// internal/syftsdk/file_uploader_resumable.go (req.Client, SetContext,
// streaming part bodies) and sdk_errors.go (response-state inspection).
package reqtransport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/oc-sync/davsync/internal/remote"
)

// Transport is a remote.Transport backed by an *req.Client pinned at
// baseURL.
type Transport struct {
	client  *req.Client
	baseURL string
}

// Option configures New.
type Option func(*Transport)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.client.SetTimeout(d) }
}

// WithBasicAuth sets HTTP basic auth credentials for every request.
func WithBasicAuth(user, pass string) Option {
	return func(t *Transport) { t.client.SetCommonBasicAuth(user, pass) }
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *Transport) { t.client.SetCommonHeader("User-Agent", ua) }
}

// New creates a Transport rooted at baseURL.
func New(baseURL string, opts ...Option) *Transport {
	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 5*time.Second).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode == 429 || resp.StatusCode >= 500
		}).
		SetCommonHeader("User-Agent", "davsync")

	t := &Transport{client: client, baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do issues req and returns its response. The response body, when
// non-nil, is the live HTTP body and must be closed by the caller.
func (t *Transport) Do(ctx context.Context, request *remote.Request) (*remote.Response, error) {
	r := t.client.R().SetContext(ctx)
	for k, v := range request.Headers {
		r.SetHeader(k, v)
	}
	if request.Body != nil {
		r.SetBody(request.Body)
		if request.ContentLength > 0 {
			r.SetHeader("Content-Length", fmt.Sprintf("%d", request.ContentLength))
		}
	}

	resp, err := r.Send(request.Method, request.Path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", request.Method, request.Path, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &remote.Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       resp.Body,
	}, nil
}

// Close releases idle connections held by the underlying client.
func (t *Transport) Close() {
	t.client.GetClient().CloseIdleConnections()
}
