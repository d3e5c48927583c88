/* SPDX-License-Identifier: BSD-2-Clause */

// Package blobfetch retrieves byte ranges of an object in a gocloud.dev
// blob bucket.
package blobfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sync"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/ricardobranco777/rangeseek/fetch"
)

// Fetcher implements fetch.Fetcher for one blob.
type Fetcher struct {
	bucket *blob.Bucket
	key    string
	url    string
	owned  bool

	mu      sync.Mutex
	size    int64
	modTime time.Time
	seen    bool
}

// New creates a Fetcher for key in bucket. The bucket stays owned by the caller.
func New(bucket *blob.Bucket, key string) *Fetcher {
	return &Fetcher{bucket: bucket, key: key, url: key}
}

// Open opens the bucket holding the blob at urlstr, e.g.
// file:///srv/images/disk.zip. The last path element is the key.
// The bucket is closed by Close.
func Open(ctx context.Context, urlstr string) (*Fetcher, error) {
	u, err := url.Parse(urlstr)
	if err != nil {
		return nil, fmt.Errorf("blobfetch: %w", err)
	}
	dir, key := path.Split(u.Path)
	if key == "" {
		return nil, fmt.Errorf("blobfetch: no object name in %q", urlstr)
	}
	bu := *u
	bu.Path = dir

	bucket, err := blob.OpenBucket(ctx, bu.String())
	if err != nil {
		return nil, fmt.Errorf("blobfetch: opening bucket %s: %w", bu.String(), err)
	}
	return &Fetcher{bucket: bucket, key: key, url: urlstr, owned: true}, nil
}

// URL returns the location of the blob.
func (f *Fetcher) URL() string { return f.url }

// Close closes the bucket if it was opened by Open.
func (f *Fetcher) Close() error {
	if !f.owned {
		return nil
	}
	return f.bucket.Close()
}

// Probe returns the blob size.
func (f *Fetcher) Probe(ctx context.Context) (fetch.Info, error) {
	attrs, err := f.bucket.Attributes(ctx, f.key)
	if err != nil {
		return fetch.Info{}, mapError(err)
	}
	if err := f.observe(attrs.Size, attrs.ModTime); err != nil {
		return fetch.Info{}, err
	}
	return fetch.Info{Size: attrs.Size, ETag: attrs.ETag}, nil
}

// FetchRange returns the bytes [start, end) of the blob.
func (f *Fetcher) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := fetch.ValidRange(start, end); err != nil {
		return nil, fmt.Errorf("blobfetch: %w", err)
	}

	r, err := f.bucket.NewRangeReader(ctx, f.key, start, end-start, nil)
	if err != nil {
		return nil, mapError(err)
	}
	defer r.Close()

	if err := f.observe(r.Size(), r.ModTime()); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobfetch: %w: %w", fetch.ErrNetwork, err)
	}
	if err := fetch.CheckLength(start, end, data); err != nil {
		return nil, fmt.Errorf("blobfetch: %w", err)
	}
	return data, nil
}

// observe records the size and modification time of the blob on first use
// and reports a change on later calls.
func (f *Fetcher) observe(size int64, modTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seen {
		f.size, f.modTime, f.seen = size, modTime, true
		return nil
	}
	if size != f.size || (!modTime.IsZero() && !f.modTime.IsZero() && !modTime.Equal(f.modTime)) {
		return fmt.Errorf("blobfetch: %w: %s was %d bytes modified %s, now %d bytes modified %s",
			fetch.ErrConsistencyFault, f.key, f.size, f.modTime, size, modTime)
	}
	return nil
}

func mapError(err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return fmt.Errorf("blobfetch: %w: %w", fetch.ErrNotFound, err)
	case gcerrors.FailedPrecondition:
		return fmt.Errorf("blobfetch: %w: %w", fetch.ErrConsistencyFault, err)
	case gcerrors.Unimplemented:
		return fmt.Errorf("blobfetch: %w: %w", fetch.ErrUnsupported, err)
	case gcerrors.InvalidArgument:
		return fmt.Errorf("blobfetch: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("blobfetch: %w", err)
	}
	return fmt.Errorf("blobfetch: %w: %w", fetch.ErrNetwork, err)
}

// Compile-time interface satisfaction checks
var (
	_ fetch.Fetcher = (*Fetcher)(nil)
	_ fetch.URLer   = (*Fetcher)(nil)
	_ io.Closer     = (*Fetcher)(nil)
)
