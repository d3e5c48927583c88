/* SPDX-License-Identifier: BSD-2-Clause */

package rangecache

import "sort"

// DefaultGapThreshold is the largest separation, in bytes, between two
// holes that Plan still fetches with a single request.
const DefaultGapThreshold = 8 << 10

// Plan returns the intervals to fetch so that every interval in want
// becomes cached. Holes separated by at most maxGap bytes are coalesced into
// one fetch, which may re-request the bytes between them. The result is
// sorted and disjoint. maxGap <= 0 disables coalescing.
func Plan(s *Set, want []Interval, maxGap int64) []Interval {
	var holes []Interval
	for _, iv := range want {
		holes = append(holes, s.Missing(iv)...)
	}
	if len(holes) == 0 {
		return nil
	}
	sort.Slice(holes, func(i, j int) bool { return holes[i].Start < holes[j].Start })

	out := holes[:1]
	for _, h := range holes[1:] {
		last := &out[len(out)-1]
		if h.Start-last.End <= max(maxGap, 0) {
			last.End = max(last.End, h.End)
			continue
		}
		out = append(out, h)
	}
	return out
}
