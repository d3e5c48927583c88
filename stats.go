/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import "fmt"

// Stats counts the network activity of a File.
type Stats struct {
	// NumRequests is the number of range fetches issued, including failed ones.
	NumRequests int64 `json:"num_requests"`
	// OptimisticBytesRead is the number of bytes obtained by the tail prefetch.
	OptimisticBytesRead int64 `json:"optimistic_bytes_read"`
	// LazyBytesRead is the number of bytes obtained by on-demand fetches.
	LazyBytesRead int64 `json:"lazy_bytes_read"`
	// SatisfiedFromCache is the number of reads that needed no fetch.
	SatisfiedFromCache int64 `json:"satisfied_from_cache"`
}

// BytesRead returns the total number of bytes fetched.
func (s Stats) BytesRead() int64 {
	return s.OptimisticBytesRead + s.LazyBytesRead
}

func (s Stats) String() string {
	return fmt.Sprintf("requests=%d optimistic=%d lazy=%d cached=%d",
		s.NumRequests, s.OptimisticBytesRead, s.LazyBytesRead, s.SatisfiedFromCache)
}

// fetchKind tags fetched bytes for accounting.
type fetchKind int

const (
	lazyFetch fetchKind = iota
	optimisticFetch
)

func (k fetchKind) String() string {
	if k == optimisticFetch {
		return "optimistic"
	}
	return "lazy"
}

// account adds n fetched bytes of kind k. Callers hold File.mu.
func (s *Stats) account(k fetchKind, n int) {
	switch k {
	case optimisticFetch:
		s.OptimisticBytesRead += int64(n)
	default:
		s.LazyBytesRead += int64(n)
	}
}
