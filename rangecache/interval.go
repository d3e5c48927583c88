/* SPDX-License-Identifier: BSD-2-Clause */

package rangecache

import "fmt"

// Interval is a half-open byte range [Start, End).
type Interval struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in the interval.
func (iv Interval) Len() int64 {
	if iv.End <= iv.Start {
		return 0
	}
	return iv.End - iv.Start
}

// Empty reports whether the interval contains no bytes.
func (iv Interval) Empty() bool { return iv.End <= iv.Start }

// Overlaps reports whether iv and o share at least one byte.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && o.Start < iv.End
}

// Touches reports whether iv and o overlap or are adjacent.
func (iv Interval) Touches(o Interval) bool {
	return iv.Start <= o.End && o.Start <= iv.End
}

// Intersect returns the common part of iv and o, which may be empty.
func (iv Interval) Intersect(o Interval) Interval {
	r := Interval{Start: max(iv.Start, o.Start), End: min(iv.End, o.End)}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d)", iv.Start, iv.End)
}
