/* SPDX-License-Identifier: BSD-2-Clause */

// Package fetch defines the transport capability used to retrieve byte
// ranges of a remote resource, and the errors transports report.
//
// Implementations live in the subpackages httpfetch, s3fetch and blobfetch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means the resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnsupported means the remote cannot report its length or does not
	// support the requested kind of range retrieval.
	ErrUnsupported = errors.New("operation not supported by remote")

	// ErrRangeUnsupported means the remote answered a range request with
	// the full content instead of the requested range.
	ErrRangeUnsupported = errors.New("remote ignored range request")

	// ErrNetwork wraps transient transport failures.
	ErrNetwork = errors.New("network error")

	// ErrConsistencyFault means the resource changed while it was being read.
	ErrConsistencyFault = errors.New("remote resource changed")
)

// Info describes a remote resource.
type Info struct {
	Size int64
	ETag string
}

// Fetcher retrieves byte ranges of a single remote resource.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	// Probe returns the resource size.
	Probe(ctx context.Context) (Info, error)

	// FetchRange returns exactly the bytes [start, end).
	FetchRange(ctx context.Context, start, end int64) ([]byte, error)
}

// SuffixFetcher is implemented by fetchers able to return the last n bytes
// of the resource together with its total size in a single round trip.
// FetchSuffix returns an error wrapping ErrUnsupported when the remote does
// not honor suffix ranges.
type SuffixFetcher interface {
	FetchSuffix(ctx context.Context, n int64) (data []byte, size int64, err error)
}

// URLer is implemented by fetchers that know the location they read from.
type URLer interface {
	URL() string
}

// CheckLength verifies that data holds exactly the bytes [start, end).
func CheckLength(start, end int64, data []byte) error {
	if int64(len(data)) != end-start {
		return fmt.Errorf("%w: got %d bytes for range [%d,%d), want %d",
			ErrNetwork, len(data), start, end, end-start)
	}
	return nil
}

// CheckSuffix verifies that the inclusive range start-end returned for a
// request of the last n bytes is exactly the tail of a total byte resource.
func CheckSuffix(start, end, total, n int64) error {
	if end != total-1 || start != max(0, total-n) {
		return fmt.Errorf("%w: asked for last %d bytes of %d, got %d-%d",
			ErrRangeUnsupported, n, total, start, end)
	}
	return nil
}

// ValidRange reports an error for ranges that cannot be requested.
func ValidRange(start, end int64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("invalid range [%d,%d)", start, end)
	}
	return nil
}

// ParseContentRange parses "bytes start-end/total". The end is inclusive.
// An unknown total ("*") is returned as -1.
func ParseContentRange(s string) (start, end, total int64, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", s)
	}
	rng, size, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", s)
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", s)
	}
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q: %w", s, err)
	}
	if end, err = strconv.ParseInt(last, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q: %w", s, err)
	}
	if end < start {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", s)
	}
	if size == "*" {
		return start, end, -1, nil
	}
	if total, err = strconv.ParseInt(size, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q: %w", s, err)
	}
	if end >= total {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", s)
	}
	return start, end, total, nil
}
