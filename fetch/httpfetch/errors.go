/* SPDX-License-Identifier: BSD-2-Clause */

package httpfetch

import (
	"fmt"
	"net/http"

	"github.com/ricardobranco777/rangeseek/fetch"
)

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %s %s failed with status %d", e.Method, e.URL, e.Code)
}

// httpError maps a status code to the fetch error kinds. The returned error
// also unwraps to *StatusError.
func httpError(method, url string, code int) error {
	se := &StatusError{Method: method, URL: url, Code: code}
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("httpfetch: %w: %w", fetch.ErrNotFound, se)
	case code == http.StatusPreconditionFailed:
		return fmt.Errorf("httpfetch: %w: %w", fetch.ErrConsistencyFault, se)
	case code == http.StatusNotImplemented:
		return fmt.Errorf("httpfetch: %w: %w", fetch.ErrUnsupported, se)
	case code >= 500:
		return fmt.Errorf("httpfetch: %w: %w", fetch.ErrNetwork, se)
	}
	return se
}
