/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ricardobranco777/rangeseek/fetch"
	"github.com/ricardobranco777/rangeseek/rangecache"
)

// File provides a file-like abstraction for remote resources.
// It implements io.ReadSeeker, io.ReaderAt, and io.Closer.
// Bytes are fetched on demand and kept in memory until Close.
//
// ReadAt and ReadRanges are safe for concurrent use. Read and Seek share
// one cursor and are serialized.
type File struct {
	fetcher  fetch.Fetcher
	resolver *resolver
	logger   Logger
	tracer   trace.Tracer
	cfg      config

	// mu guards the cache, the counters and closed.
	mu     sync.Mutex
	set    *rangecache.Set
	stats  Stats
	closed bool

	offMu sync.Mutex
	off   int64
}

// New returns a File reading through fetcher. Unless disabled with
// WithPrefetch, the tail of the resource is fetched before New returns.
func New(ctx context.Context, fetcher fetch.Fetcher, opts ...Option) (*File, error) {
	if fetcher == nil {
		return nil, errors.New("rangeseek: nil fetcher")
	}
	cfg := newConfig(opts)
	f := &File{
		fetcher: fetcher,
		logger:  cfg.logger,
		tracer:  cfg.tp.Tracer(tracerName),
		cfg:     cfg,
		set:     rangecache.New(),
	}
	f.resolver = &resolver{probe: f.probe}

	if err := f.prefetch(ctx, cfg.prefetch); err != nil {
		return nil, err
	}
	f.logger.Debug("opened", "url", f.URL(), "stats", f.Stats())
	return f, nil
}

// URL returns the location of the resource, if the fetcher knows it.
func (f *File) URL() string {
	if u, ok := f.fetcher.(fetch.URLer); ok {
		return u.URL()
	}
	return ""
}

// Size returns the total length of the resource, probing it if necessary.
func (f *File) Size() (int64, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	return f.resolver.resolve(f.cfg.ctx)
}

// Stats returns a snapshot of the counters.
func (f *File) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Tell returns the current offset.
func (f *File) Tell() int64 {
	f.offMu.Lock()
	defer f.offMu.Unlock()
	return f.off
}

// Read reads from the current offset and advances it.
func (f *File) Read(p []byte) (int, error) {
	return f.ReadContext(f.cfg.ctx, p)
}

// ReadContext is like Read with context.
func (f *File) ReadContext(ctx context.Context, p []byte) (int, error) {
	f.offMu.Lock()
	defer f.offMu.Unlock()

	n, err := f.readAt(ctx, p, f.off)
	f.off += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.ReadAtContext(f.cfg.ctx, p, off)
}

// ReadAtContext is like ReadAt with context.
func (f *File) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	n, err := f.readAt(ctx, p, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// Seek implements io.Seeker. Seeking relative to the end resolves the
// length of the resource. Offsets past the end are allowed.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}

	f.offMu.Lock()
	defer f.offMu.Unlock()

	var newOff int64
	switch whence {
	case io.SeekStart:
		newOff = offset
	case io.SeekCurrent:
		newOff = f.off + offset
	case io.SeekEnd:
		size, err := f.resolver.resolve(f.cfg.ctx)
		if err != nil {
			return 0, err
		}
		newOff = size + offset
	default:
		return 0, ErrInvalidSeek
	}

	if newOff < 0 {
		return 0, ErrInvalidSeek
	}
	f.off = newOff
	return f.off, nil
}

// ReadRanges reads several ranges at once. Missing bytes of all ranges are
// planned together, so nearby ranges may be served by a single fetch.
// Ranges are clipped to the end of the resource.
func (f *File) ReadRanges(ctx context.Context, ivs []rangecache.Interval) ([][]byte, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	for _, iv := range ivs {
		if iv.Start < 0 || iv.End < iv.Start {
			return nil, fmt.Errorf("rangeseek: invalid range %s", iv)
		}
	}
	size, err := f.resolver.resolve(ctx)
	if err != nil {
		return nil, err
	}

	clipped := make([]rangecache.Interval, len(ivs))
	var want []rangecache.Interval
	for i, iv := range ivs {
		clipped[i] = rangecache.Interval{Start: min(iv.Start, size), End: min(iv.End, size)}
		if !clipped[i].Empty() {
			want = append(want, clipped[i])
		}
	}

	out := make([][]byte, len(ivs))
	if len(want) > 0 {
		if _, err := f.load(ctx, want); err != nil {
			return nil, err
		}
	}
	for i, iv := range clipped {
		if out[i], err = f.extract(iv); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close releases the cached bytes and closes the fetcher if it is an
// io.Closer. Later operations return ErrClosed.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.set.Clear()
	stats := f.stats
	f.mu.Unlock()

	f.logger.Debug("closed", "url", f.URL(), "stats", stats)
	if c, ok := f.fetcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (f *File) checkOpen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return nil
}

// readAt copies [off, off+len(p)) clipped to the resource length into p.
// It returns 0, io.EOF at or past the end.
func (f *File) readAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, fmt.Errorf("rangeseek: negative offset %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}

	size, err := f.resolver.resolve(ctx)
	if err != nil {
		return 0, err
	}
	if off >= size {
		return 0, io.EOF
	}
	iv := rangecache.Interval{Start: off, End: min(off+int64(len(p)), size)}

	ctx, span := f.tracer.Start(ctx, "rangeseek.Read", trace.WithAttributes(
		readOffsetKey.Int64(off),
		readLengthKey.Int(len(p)),
	))
	defer span.End()

	hit, err := f.load(ctx, []rangecache.Interval{iv})
	span.SetAttributes(cacheHitKey.Bool(hit))
	if err != nil {
		return 0, recordError(span, err)
	}

	data, err := f.extract(iv)
	if err != nil {
		return 0, recordError(span, err)
	}
	return copy(p, data), nil
}

// load makes every interval in want cached. It reports whether no fetch
// was needed.
func (f *File) load(ctx context.Context, want []rangecache.Interval) (bool, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false, ErrClosed
	}
	plan := rangecache.Plan(f.set, want, f.cfg.gap)
	if len(plan) == 0 {
		f.stats.SatisfiedFromCache++
		f.mu.Unlock()
		f.logger.Debug("cache hit", "ranges", want)
		return true, nil
	}
	f.mu.Unlock()

	f.logger.Debug("planned fetches", "ranges", want, "plan", plan)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.concurrency)
	for _, iv := range plan {
		g.Go(func() error {
			return f.fetch(gctx, iv, lazyFetch)
		})
	}
	return false, g.Wait()
}

// fetch retrieves iv and stores it. Nothing is stored on failure.
func (f *File) fetch(ctx context.Context, iv rangecache.Interval, kind fetchKind) error {
	ctx, span := f.tracer.Start(ctx, "rangeseek.Fetch", trace.WithAttributes(rangeAttrs(iv)...))
	defer span.End()
	span.SetAttributes(fetchKindKey.String(kind.String()))

	if err := f.issue(); err != nil {
		return recordError(span, err)
	}
	f.logger.Debug("fetching", "range", iv, "kind", kind)

	data, err := f.fetcher.FetchRange(ctx, iv.Start, iv.End)
	if err == nil {
		err = fetch.CheckLength(iv.Start, iv.End, data)
	}
	if err != nil {
		f.logger.Error("fetch failed", "range", iv, "error", err)
		return recordError(span, fmt.Errorf("rangeseek: fetching %s: %w", iv, err))
	}
	span.SetAttributes(fetchBytesKey.Int(len(data)))

	if err := f.store(iv.Start, data, kind); err != nil {
		return recordError(span, err)
	}
	return nil
}

// issue counts a fetch about to be sent.
func (f *File) issue() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.stats.NumRequests++
	return nil
}

// store accounts for fetched bytes and inserts them. It is the only place
// the cache grows. Bytes are counted even when they cannot be inserted.
func (f *File) store(start int64, data []byte, kind fetchKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.account(kind, len(data))
	if f.closed {
		return ErrClosed
	}
	if err := f.set.Insert(start, data); err != nil {
		if errors.Is(err, rangecache.ErrMismatch) {
			return fmt.Errorf("rangeseek: %w: %w", ErrConsistencyFault, err)
		}
		return fmt.Errorf("rangeseek: %w", err)
	}
	return nil
}

func (f *File) extract(iv rangecache.Interval) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	data, err := f.set.Extract(iv)
	if err != nil {
		return nil, fmt.Errorf("rangeseek: %w", err)
	}
	return data, nil
}

// probe asks the fetcher for the resource length. Probes are not counted
// as requests.
func (f *File) probe(ctx context.Context) (int64, error) {
	ctx, span := f.tracer.Start(ctx, "rangeseek.Probe", trace.WithAttributes(urlKey.String(f.URL())))
	defer span.End()

	info, err := f.fetcher.Probe(ctx)
	if err != nil {
		return 0, recordError(span, fmt.Errorf("rangeseek: resolving length: %w", err))
	}
	if info.Size < 0 {
		return 0, recordError(span, fmt.Errorf("rangeseek: %w: negative length %d", fetch.ErrUnsupported, info.Size))
	}
	span.SetAttributes(sizeKey.Int64(info.Size))
	f.logger.Debug("resolved length", "url", f.URL(), "size", info.Size, "etag", info.ETag)
	return info.Size, nil
}
