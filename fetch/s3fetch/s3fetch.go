/* SPDX-License-Identifier: BSD-2-Clause */

// Package s3fetch retrieves byte ranges of an S3 object with ranged
// GetObject calls.
package s3fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ricardobranco777/rangeseek/fetch"
	"github.com/ricardobranco777/rangeseek/internal/logutil"
)

// API is the subset of the S3 client used by Fetcher.
// *s3.Client satisfies it.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l logutil.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logutil.Or(l)
	}
}

// Fetcher implements fetch.Fetcher and fetch.SuffixFetcher for one S3 object.
type Fetcher struct {
	client API
	bucket string
	key    string
	logger logutil.Logger

	mu   sync.Mutex
	etag string
}

// New creates a Fetcher for s3://bucket/key.
func New(client API, bucket, key string, opts ...Option) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("s3fetch: client is required")
	}
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3fetch: bucket and key are required, got %q and %q", bucket, key)
	}
	f := &Fetcher{
		client: client,
		bucket: bucket,
		key:    key,
		logger: logutil.NoopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// URL returns s3://bucket/key.
func (f *Fetcher) URL() string {
	return "s3://" + f.bucket + "/" + f.key
}

// Probe returns the object size from HeadObject.
func (f *Fetcher) Probe(ctx context.Context) (fetch.Info, error) {
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:  aws.String(f.bucket),
		Key:     aws.String(f.key),
		IfMatch: f.ifMatch(),
	})
	if err != nil {
		return fetch.Info{}, mapError("head", err)
	}
	if out.ContentLength == nil || *out.ContentLength < 0 {
		return fetch.Info{}, fmt.Errorf("s3fetch: %w: no content length for %s", fetch.ErrUnsupported, f.URL())
	}
	etag, err := f.observe(aws.ToString(out.ETag))
	if err != nil {
		return fetch.Info{}, err
	}
	f.logger.Debug("probed", "url", f.URL(), "size", *out.ContentLength, "etag", etag)
	return fetch.Info{Size: *out.ContentLength, ETag: etag}, nil
}

// FetchRange returns the bytes [start, end) of the object.
func (f *Fetcher) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := fetch.ValidRange(start, end); err != nil {
		return nil, fmt.Errorf("s3fetch: %w", err)
	}
	// S3 Range header format: "bytes=start-end" (inclusive)
	out, err := f.get(ctx, fmt.Sprintf("bytes=%d-%d", start, end-1))
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()

	first, _, _, err := contentRange(out)
	if err != nil {
		return nil, err
	}
	if first != start {
		return nil, fmt.Errorf("s3fetch: %w: asked for offset %d, got %q",
			fetch.ErrRangeUnsupported, start, aws.ToString(out.ContentRange))
	}

	data, err := readBody(out.Body, end-start)
	if err != nil {
		return nil, err
	}
	if err := fetch.CheckLength(start, end, data); err != nil {
		return nil, fmt.Errorf("s3fetch: %w", err)
	}
	return data, nil
}

// FetchSuffix returns the last n bytes of the object and its size.
func (f *Fetcher) FetchSuffix(ctx context.Context, n int64) ([]byte, int64, error) {
	if n <= 0 {
		return nil, 0, fmt.Errorf("s3fetch: invalid suffix length %d", n)
	}
	out, err := f.get(ctx, fmt.Sprintf("bytes=-%d", n))
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = out.Body.Close() }()

	start, end, total, err := contentRange(out)
	if err != nil {
		return nil, 0, err
	}
	if total < 0 {
		return nil, 0, fmt.Errorf("s3fetch: %w: unknown object size", fetch.ErrUnsupported)
	}
	if err := fetch.CheckSuffix(start, end, total, n); err != nil {
		return nil, 0, fmt.Errorf("s3fetch: %w", err)
	}

	data, err := readBody(out.Body, end+1-start)
	if err != nil {
		return nil, 0, err
	}
	if err := fetch.CheckLength(start, end+1, data); err != nil {
		return nil, 0, fmt.Errorf("s3fetch: %w", err)
	}
	return data, total, nil
}

func (f *Fetcher) get(ctx context.Context, rng string) (*s3.GetObjectOutput, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:  aws.String(f.bucket),
		Key:     aws.String(f.key),
		Range:   aws.String(rng),
		IfMatch: f.ifMatch(),
	})
	if err != nil {
		return nil, mapError("range read", err)
	}
	if _, err := f.observe(aws.ToString(out.ETag)); err != nil {
		_ = out.Body.Close()
		return nil, err
	}
	return out, nil
}

func (f *Fetcher) ifMatch() *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.etag == "" {
		return nil
	}
	return aws.String(f.etag)
}

// observe records the first ETag seen and rejects later different ones.
func (f *Fetcher) observe(etag string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case etag == "" || etag == f.etag:
	case f.etag == "":
		f.etag = etag
	default:
		return f.etag, fmt.Errorf("s3fetch: %w: etag was %s, now %s", fetch.ErrConsistencyFault, f.etag, etag)
	}
	return f.etag, nil
}

func contentRange(out *s3.GetObjectOutput) (start, end, total int64, err error) {
	if out.ContentRange == nil {
		return 0, 0, 0, fmt.Errorf("s3fetch: %w: response has no Content-Range", fetch.ErrRangeUnsupported)
	}
	start, end, total, err = fetch.ParseContentRange(*out.ContentRange)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("s3fetch: %w: %w", fetch.ErrRangeUnsupported, err)
	}
	return start, end, total, nil
}

func readBody(r io.Reader, n int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, n+1))
	if err != nil {
		return nil, fmt.Errorf("s3fetch: %w: reading range body: %w", fetch.ErrNetwork, err)
	}
	return data, nil
}

// mapError classifies S3 errors into the fetch error kinds.
func mapError(op string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("s3fetch: %s: %w: %w", op, fetch.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "412":
			return fmt.Errorf("s3fetch: %s: %w: %w", op, fetch.ErrConsistencyFault, err)
		case "InvalidRange", "416", "NotImplemented":
			return fmt.Errorf("s3fetch: %s: %w: %w", op, fetch.ErrUnsupported, err)
		}
	}
	return fmt.Errorf("s3fetch: %s: %w: %w", op, fetch.ErrNetwork, err)
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}

// Compile-time interface satisfaction checks
var (
	_ fetch.Fetcher       = (*Fetcher)(nil)
	_ fetch.SuffixFetcher = (*Fetcher)(nil)
	_ fetch.URLer         = (*Fetcher)(nil)
	_ API                 = (*s3.Client)(nil)
)
