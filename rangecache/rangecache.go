/* SPDX-License-Identifier: BSD-2-Clause */

// Package rangecache keeps the byte intervals of a remote resource that have
// already been fetched, and plans the fetches needed to complete a read.
package rangecache

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMismatch is returned by Insert when fetched bytes disagree with
	// bytes already cached for the same offsets.
	ErrMismatch = errors.New("rangecache: cached bytes differ from fetched bytes")

	// ErrNotCovered is returned by Extract for intervals with missing bytes.
	ErrNotCovered = errors.New("rangecache: interval not fully cached")
)

type segment struct {
	start int64
	data  []byte
}

func (s segment) end() int64 { return s.start + int64(len(s.data)) }

// Set is an ordered collection of disjoint, non-adjacent cached segments.
// It grows monotonically and never evicts.
//
// A Set is not safe for concurrent use; the owner serializes access.
type Set struct {
	segs []segment
	size int64
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

// Insert adds data fetched at offset start. Overlapping or adjacent segments
// are merged into one. Bytes overlapping existing segments must be identical;
// otherwise an error wrapping ErrMismatch is returned and the Set is left
// unchanged. data is copied.
func (s *Set) Insert(start int64, data []byte) error {
	if start < 0 {
		return fmt.Errorf("rangecache: negative offset %d", start)
	}
	if len(data) == 0 {
		return nil
	}
	iv := Interval{Start: start, End: start + int64(len(data))}

	// segs[i:j] overlap or touch iv.
	i := sort.Search(len(s.segs), func(k int) bool { return s.segs[k].end() >= iv.Start })
	j := sort.Search(len(s.segs), func(k int) bool { return s.segs[k].start > iv.End })

	for _, seg := range s.segs[i:j] {
		o := Interval{Start: seg.start, End: seg.end()}.Intersect(iv)
		if o.Empty() {
			continue
		}
		cached := seg.data[o.Start-seg.start : o.End-seg.start]
		fresh := data[o.Start-iv.Start : o.End-iv.Start]
		if !bytes.Equal(cached, fresh) {
			return fmt.Errorf("%w at %s", ErrMismatch, o)
		}
	}

	if j-i == 1 && s.segs[i].start <= iv.Start && s.segs[i].end() >= iv.End {
		return nil
	}

	merged := iv
	if i < j {
		merged.Start = min(merged.Start, s.segs[i].start)
		merged.End = max(merged.End, s.segs[j-1].end())
	}

	buf := make([]byte, merged.Len())
	var old int64
	for _, seg := range s.segs[i:j] {
		copy(buf[seg.start-merged.Start:], seg.data)
		old += int64(len(seg.data))
	}
	copy(buf[iv.Start-merged.Start:], data)

	s.segs = append(s.segs[:i], append([]segment{{start: merged.Start, data: buf}}, s.segs[j:]...)...)
	s.size += merged.Len() - old
	return nil
}

// Missing returns the maximal sub-intervals of iv that are not cached,
// in ascending order. A nil result means iv is fully cached.
func (s *Set) Missing(iv Interval) []Interval {
	if iv.Empty() {
		return nil
	}
	var holes []Interval
	pos := iv.Start
	k := sort.Search(len(s.segs), func(k int) bool { return s.segs[k].end() > iv.Start })
	for ; k < len(s.segs) && s.segs[k].start < iv.End; k++ {
		seg := s.segs[k]
		if seg.start > pos {
			holes = append(holes, Interval{Start: pos, End: seg.start})
		}
		pos = max(pos, seg.end())
	}
	if pos < iv.End {
		holes = append(holes, Interval{Start: pos, End: iv.End})
	}
	return holes
}

// Covered reports whether every byte of iv is cached.
func (s *Set) Covered(iv Interval) bool {
	return len(s.Missing(iv)) == 0
}

// Extract returns a copy of the cached bytes for iv.
func (s *Set) Extract(iv Interval) ([]byte, error) {
	if iv.Empty() {
		return []byte{}, nil
	}
	// Segments never touch, so a covered interval lies in a single segment.
	k := sort.Search(len(s.segs), func(k int) bool { return s.segs[k].end() > iv.Start })
	if k == len(s.segs) || s.segs[k].start > iv.Start || s.segs[k].end() < iv.End {
		return nil, fmt.Errorf("%w: %s", ErrNotCovered, iv)
	}
	seg := s.segs[k]
	out := make([]byte, iv.Len())
	copy(out, seg.data[iv.Start-seg.start:iv.End-seg.start])
	return out, nil
}

// Intervals returns the cached intervals in ascending order.
func (s *Set) Intervals() []Interval {
	ivs := make([]Interval, len(s.segs))
	for k, seg := range s.segs {
		ivs[k] = Interval{Start: seg.start, End: seg.end()}
	}
	return ivs
}

// Len returns the number of segments.
func (s *Set) Len() int { return len(s.segs) }

// Size returns the number of cached bytes.
func (s *Set) Size() int64 { return s.size }

// Clear drops every segment.
func (s *Set) Clear() {
	s.segs = nil
	s.size = 0
}
