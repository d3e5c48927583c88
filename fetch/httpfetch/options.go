/* SPDX-License-Identifier: BSD-2-Clause */

package httpfetch

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ricardobranco777/rangeseek/internal/logutil"
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client. A nil client means http.DefaultClient.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.header.Add(key, value)
	}
}

// WithLogger sets the logger used for request and response dumps.
func WithLogger(l logutil.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logutil.Or(l)
	}
}

// WithRateLimit makes every request wait for l.
func WithRateLimit(l *rate.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithETagCheck enables or disables conditional requests and the detection
// of resources changing between requests. Enabled by default.
func WithETagCheck(check bool) Option {
	return func(f *Fetcher) {
		f.checkETag = check
	}
}
