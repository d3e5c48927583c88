/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/ricardobranco777/rangeseek/fetch"
	"github.com/ricardobranco777/rangeseek/rangecache"
)

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte('A' + (i*7+i/26)%26)
	}
	return data
}

// fakeFetcher serves data from memory and records every fetch.
type fakeFetcher struct {
	mu       sync.Mutex
	data     []byte
	probeErr error
	fetchErr []error // consumed one per fetch
	probes   int
	fetches  []rangecache.Interval
	closed   int
}

func newFake(data []byte) *fakeFetcher {
	return &fakeFetcher{data: data}
}

func (f *fakeFetcher) Probe(context.Context) (fetch.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	if f.probeErr != nil {
		return fetch.Info{}, f.probeErr
	}
	return fetch.Info{Size: int64(len(f.data))}, nil
}

func (f *fakeFetcher) FetchRange(_ context.Context, start, end int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetchErr) > 0 {
		err := f.fetchErr[0]
		f.fetchErr = f.fetchErr[1:]
		if err != nil {
			return nil, err
		}
	}
	if err := fetch.ValidRange(start, end); err != nil {
		return nil, err
	}
	f.fetches = append(f.fetches, rangecache.Interval{Start: start, End: end})
	end = min(end, int64(len(f.data)))
	return append([]byte(nil), f.data[start:end]...), nil
}

func (f *fakeFetcher) URL() string { return "fake://resource" }

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFetcher) setData(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
}

func (f *fakeFetcher) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = append(f.fetchErr, errs...)
}

func (f *fakeFetcher) log() []rangecache.Interval {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rangecache.Interval(nil), f.fetches...)
}

func (f *fakeFetcher) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// suffixFake additionally serves suffix ranges.
type suffixFake struct {
	*fakeFetcher
	unsupported bool
	short       int64 // bytes missing from the front of the tail
}

func (f *suffixFake) FetchSuffix(_ context.Context, n int64) ([]byte, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsupported {
		return nil, 0, fmt.Errorf("fake: %w", fetch.ErrUnsupported)
	}
	size := int64(len(f.data))
	start := min(max(0, size-n)+f.short, size)
	f.fetches = append(f.fetches, rangecache.Interval{Start: start, End: size})
	return append([]byte(nil), f.data[start:]...), size, nil
}

// serveBytesRange returns an httptest.Server that supports Range and HEAD requests.
func serveBytesRange(data []byte) *httptest.Server {
	return httptest.NewServer(rangeHandler(data))
}

func rangeHandler(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.Header().Set("Accept-Ranges", "bytes")
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			rangeHdr := r.Header.Get("Range")
			if rangeHdr == "" {
				http.Error(w, "Range required", http.StatusBadRequest)
				return
			}
			var start, end int
			if suffix, ok := strings.CutPrefix(rangeHdr, "bytes=-"); ok {
				var n int
				if _, err := fmt.Sscanf(suffix, "%d", &n); err != nil || n <= 0 {
					http.Error(w, "Bad Range", http.StatusBadRequest)
					return
				}
				start, end = max(len(data)-n, 0), len(data)-1
			} else if n, _ := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &start, &end); n != 2 {
				http.Error(w, "Bad Range", http.StatusBadRequest)
				return
			}
			if start < 0 || end >= len(data) || start > end {
				http.Error(w, "Invalid Range", http.StatusRequestedRangeNotSatisfiable)
				return
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(data[start : end+1])
		default:
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		}
	}
}
