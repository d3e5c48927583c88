/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"github.com/ricardobranco777/rangeseek/fetch/httpfetch"
)

// Open opens a remote HTTP resource as a seekable, readable file.
// It mirrors os.Open in spirit: the resource is opened read-only
// and must be closed when no longer needed.
func Open(url string, opts ...Option) (*File, error) {
	cfg := newConfig(opts)
	httpOpts := append([]httpfetch.Option{httpfetch.WithLogger(cfg.logger)}, cfg.httpOpts...)
	return New(cfg.ctx, httpfetch.New(url, httpOpts...), opts...)
}
