/* SPDX-License-Identifier: BSD-2-Clause */

package httpfetch

import (
	"net/http"
	"strconv"

	"github.com/ricardobranco777/rangeseek/fetch"
)

// Metadata captures ETag and Last-Modified headers for cache validation.
type Metadata struct {
	ETag         string
	LastModified string
	Length       int64
}

// extractMetadata extracts metadata from response headers.
// Length comes from the total of Content-Range when present,
// otherwise from Content-Length.
func extractMetadata(h http.Header) Metadata {
	m := Metadata{
		ETag:         h.Get("ETag"),
		LastModified: h.Get("Last-Modified"),
	}

	if cr := h.Get("Content-Range"); cr != "" {
		if _, _, total, err := fetch.ParseContentRange(cr); err == nil && total >= 0 {
			m.Length = total
		}
	} else if cl := h.Get("Content-Length"); cl != "" {
		if length, err := strconv.ParseInt(cl, 10, 64); err == nil {
			m.Length = length
		}
	}

	return m
}

// Equal reports whether two metadata values represent the same resource version.
// Fields unknown on either side are not compared.
func (m Metadata) Equal(other Metadata) bool {
	if m.ETag != "" && other.ETag != "" && m.ETag != other.ETag {
		return false
	}
	if m.LastModified != "" && other.LastModified != "" && m.LastModified != other.LastModified {
		return false
	}
	if m.Length > 0 && other.Length > 0 && m.Length != other.Length {
		return false
	}
	return true
}

// merge fills the fields of m that are still unknown from other.
func (m *Metadata) merge(other Metadata) {
	if m.ETag == "" {
		m.ETag = other.ETag
	}
	if m.LastModified == "" {
		m.LastModified = other.LastModified
	}
	if m.Length == 0 {
		m.Length = other.Length
	}
}

// ApplyValidators adds conditional headers to a request (for conditional GETs).
func (m Metadata) ApplyValidators(h http.Header) {
	if m.ETag != "" {
		h.Set("If-Match", m.ETag)
	}
	if m.LastModified != "" {
		h.Set("If-Unmodified-Since", m.LastModified)
	}
}
