/* SPDX-License-Identifier: BSD-2-Clause */

// Package httpfetch retrieves byte ranges of a resource over HTTP using
// Range requests.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ricardobranco777/rangeseek/fetch"
	"github.com/ricardobranco777/rangeseek/internal/logutil"
)

// Fetcher implements fetch.Fetcher and fetch.SuffixFetcher via HTTP Range requests.
type Fetcher struct {
	client    *http.Client
	header    http.Header
	logger    logutil.Logger
	limiter   *rate.Limiter
	checkETag bool

	mu   sync.Mutex
	url  string
	meta Metadata
}

// New creates a Fetcher for rawURL. No request is made until Probe or a fetch.
func New(rawURL string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    http.DefaultClient,
		header:    make(http.Header),
		logger:    logutil.NoopLogger(),
		checkETag: true,
		url:       rawURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the location requests are sent to. After a redirect this is
// the final URL.
func (f *Fetcher) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

// Metadata returns the validators seen so far.
func (f *Fetcher) Metadata() Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta
}

// Probe returns the resource size using HEAD, or a one-byte GET when the
// server rejects HEAD.
func (f *Fetcher) Probe(ctx context.Context) (fetch.Info, error) {
	resp, err := f.do(ctx, http.MethodHead, "")
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusMethodNotAllowed {
		f.logger.Debug("HEAD not allowed, probing with GET", "url", se.URL)
		return f.probeGet(ctx)
	}
	if err != nil {
		return fetch.Info{}, err
	}
	resp.Body.Close()

	if !strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes") {
		return fetch.Info{}, fmt.Errorf("httpfetch: %w: server does not support Range requests", fetch.ErrUnsupported)
	}
	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return fetch.Info{}, fmt.Errorf("httpfetch: %w: missing Content-Length", fetch.ErrUnsupported)
	}
	size, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || size < 0 {
		return fetch.Info{}, fmt.Errorf("httpfetch: %w: invalid Content-Length %q", fetch.ErrUnsupported, cl)
	}

	meta, err := f.observe(resp)
	if err != nil {
		return fetch.Info{}, err
	}
	return fetch.Info{Size: size, ETag: meta.ETag}, nil
}

func (f *Fetcher) probeGet(ctx context.Context) (fetch.Info, error) {
	resp, err := f.do(ctx, http.MethodGet, "bytes=0-0")
	if err != nil {
		return fetch.Info{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fetch.Info{}, fmt.Errorf("httpfetch: %w: GET returned %s", fetch.ErrUnsupported, resp.Status)
	}
	_, _, total, err := fetch.ParseContentRange(resp.Header.Get("Content-Range"))
	if err != nil || total < 0 {
		return fetch.Info{}, fmt.Errorf("httpfetch: %w: unknown length", fetch.ErrUnsupported)
	}
	meta, err := f.observe(resp)
	if err != nil {
		return fetch.Info{}, err
	}
	return fetch.Info{Size: total, ETag: meta.ETag}, nil
}

// FetchRange issues GET with Range: bytes=start-(end-1).
func (f *Fetcher) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := fetch.ValidRange(start, end); err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}

	resp, err := f.do(ctx, http.MethodGet, fmt.Sprintf("bytes=%d-%d", start, end-1))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("httpfetch: %w: range request returned %s", fetch.ErrRangeUnsupported, resp.Status)
	}
	if _, err := f.observe(resp); err != nil {
		return nil, err
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		first, _, _, err := fetch.ParseContentRange(cr)
		if err != nil || first != start {
			return nil, fmt.Errorf("httpfetch: %w: asked for bytes %d-%d, got %q",
				fetch.ErrRangeUnsupported, start, end-1, cr)
		}
	}

	data, err := readBody(resp.Body, end-start)
	if err != nil {
		return nil, err
	}
	if err := fetch.CheckLength(start, end, data); err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}
	return data, nil
}

// FetchSuffix issues GET with Range: bytes=-n and returns the tail together
// with the total size taken from Content-Range.
func (f *Fetcher) FetchSuffix(ctx context.Context, n int64) ([]byte, int64, error) {
	if n <= 0 {
		return nil, 0, fmt.Errorf("httpfetch: invalid suffix length %d", n)
	}

	resp, err := f.do(ctx, http.MethodGet, fmt.Sprintf("bytes=-%d", n))
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusRequestedRangeNotSatisfiable {
		return nil, 0, fmt.Errorf("httpfetch: %w: %w", fetch.ErrUnsupported, err)
	}
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if _, err := f.observe(resp); err != nil {
		return nil, 0, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		start, end, total, err := fetch.ParseContentRange(resp.Header.Get("Content-Range"))
		if err != nil || total < 0 {
			return nil, 0, fmt.Errorf("httpfetch: %w: suffix response without length", fetch.ErrUnsupported)
		}
		if err := fetch.CheckSuffix(start, end, total, n); err != nil {
			return nil, 0, fmt.Errorf("httpfetch: %w", err)
		}
		data, err := readBody(resp.Body, end+1-start)
		if err != nil {
			return nil, 0, err
		}
		if err := fetch.CheckLength(start, end+1, data); err != nil {
			return nil, 0, fmt.Errorf("httpfetch: %w", err)
		}
		return data, total, nil
	case http.StatusOK:
		// The whole resource fits in the suffix.
		if resp.ContentLength < 0 || resp.ContentLength > n {
			return nil, 0, fmt.Errorf("httpfetch: %w: suffix request returned %s", fetch.ErrRangeUnsupported, resp.Status)
		}
		data, err := readBody(resp.Body, resp.ContentLength)
		if err != nil {
			return nil, 0, err
		}
		if err := fetch.CheckLength(0, resp.ContentLength, data); err != nil {
			return nil, 0, fmt.Errorf("httpfetch: %w", err)
		}
		return data, resp.ContentLength, nil
	default:
		return nil, 0, fmt.Errorf("httpfetch: %w: suffix request returned %s", fetch.ErrUnsupported, resp.Status)
	}
}

// do sends a request and returns the response for 2xx statuses.
// Any other status is mapped to an error and the body is closed.
func (f *Fetcher) do(ctx context.Context, method, rangeHdr string) (*http.Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpfetch: %w", err)
		}
	}

	f.mu.Lock()
	url, meta := f.url, f.meta
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}
	for k, vs := range f.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if rangeHdr != "" {
		req.Header.Set("Range", rangeHdr)
	}
	if f.checkETag {
		meta.ApplyValidators(req.Header)
	}

	logutil.DumpRequest(f.logger, req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %w: %w", fetch.ErrNetwork, err)
	}

	logutil.DumpResponse(f.logger, resp)

	if resp.Request != nil && resp.Request.URL != nil {
		if final := resp.Request.URL.String(); final != url {
			f.logger.Debug("following redirect", "from", url, "to", final)
			f.mu.Lock()
			f.url = final
			f.mu.Unlock()
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, httpError(method, url, resp.StatusCode)
	}
	return resp, nil
}

// observe records the validators of resp, failing if they show that the
// resource changed since the first response.
func (f *Fetcher) observe(resp *http.Response) (Metadata, error) {
	m := extractMetadata(resp.Header)
	if resp.StatusCode == http.StatusPartialContent && resp.Header.Get("Content-Range") == "" {
		// Content-Length is the length of the part here.
		m.Length = 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkETag && !f.meta.Equal(m) {
		return f.meta, fmt.Errorf("httpfetch: %w: had etag=%q last-modified=%q length=%d, got etag=%q last-modified=%q length=%d",
			fetch.ErrConsistencyFault, f.meta.ETag, f.meta.LastModified, f.meta.Length, m.ETag, m.LastModified, m.Length)
	}
	f.meta.merge(m)
	return f.meta, nil
}

func readBody(r io.Reader, n int64) ([]byte, error) {
	// One extra byte lets CheckLength detect overlong bodies.
	data, err := io.ReadAll(io.LimitReader(r, n+1))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %w: reading body: %w", fetch.ErrNetwork, err)
	}
	return data, nil
}

// Compile-time interface satisfaction checks
var (
	_ fetch.Fetcher       = (*Fetcher)(nil)
	_ fetch.SuffixFetcher = (*Fetcher)(nil)
	_ fetch.URLer         = (*Fetcher)(nil)
)
