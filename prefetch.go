/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/ricardobranco777/rangeseek/fetch"
	"github.com/ricardobranco777/rangeseek/rangecache"
)

// prefetch fetches the last window bytes of the resource. A fetcher able
// to serve suffix ranges learns the length and the tail in one request.
// When the length cannot be determined the prefetch is skipped.
func (f *File) prefetch(ctx context.Context, window int64) error {
	if window <= 0 {
		return nil
	}

	if sf, ok := f.fetcher.(fetch.SuffixFetcher); ok {
		err := f.prefetchSuffix(ctx, sf, window)
		if !errors.Is(err, fetch.ErrUnsupported) {
			return err
		}
		f.logger.Debug("suffix range unsupported, probing", "url", f.URL(), "error", err)
	}

	size, err := f.resolver.resolve(ctx)
	if errors.Is(err, fetch.ErrUnsupported) {
		f.logger.Debug("length unknown, skipping prefetch", "url", f.URL(), "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	return f.fetch(ctx, rangecache.Interval{Start: max(0, size-window), End: size}, optimisticFetch)
}

func (f *File) prefetchSuffix(ctx context.Context, sf fetch.SuffixFetcher, window int64) error {
	ctx, span := f.tracer.Start(ctx, "rangeseek.Fetch", trace.WithAttributes(
		fetchKindKey.String(optimisticFetch.String()),
		rangeStartKey.Int64(-window),
	))
	defer span.End()

	if err := f.issue(); err != nil {
		return recordError(span, err)
	}
	f.logger.Debug("fetching tail", "url", f.URL(), "window", window)

	data, size, err := sf.FetchSuffix(ctx, window)
	if err != nil {
		return recordError(span, fmt.Errorf("rangeseek: fetching last %d bytes: %w", window, err))
	}
	span.SetAttributes(fetchBytesKey.Int(len(data)), sizeKey.Int64(size))

	if int64(len(data)) != min(window, size) {
		return recordError(span, fmt.Errorf("rangeseek: %w: %d byte tail of %d byte resource, want %d",
			fetch.ErrRangeUnsupported, len(data), size, min(window, size)))
	}
	f.resolver.seed(size)
	if err := f.store(size-int64(len(data)), data, optimisticFetch); err != nil {
		return recordError(span, err)
	}
	return nil
}
