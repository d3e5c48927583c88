/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ricardobranco777/rangeseek/fetch/httpfetch"
	"github.com/ricardobranco777/rangeseek/rangecache"
)

// DefaultPrefetch is the default size of the tail window fetched at open.
const DefaultPrefetch = 256000

// DefaultConcurrency is the default number of gaps fetched in parallel.
const DefaultConcurrency = 4

// Option configures a File.
type Option interface {
	apply(*config)
}

type config struct {
	ctx         context.Context
	prefetch    int64
	gap         int64
	concurrency int
	logger      Logger
	tp          trace.TracerProvider
	httpOpts    []httpfetch.Option
}

type optionFunc func(*config)

func (o optionFunc) apply(c *config) {
	o(c)
}

func newConfig(opts []Option) config {
	cfg := config{
		ctx:         context.Background(),
		prefetch:    DefaultPrefetch,
		gap:         rangecache.DefaultGapThreshold,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = getLogger()
	}
	if cfg.tp == nil {
		cfg.tp = otel.GetTracerProvider()
	}
	return cfg
}

// WithPrefetch sets the size of the tail window fetched when the file is
// opened. Zero or a negative value disables the prefetch.
func WithPrefetch(window int64) Option {
	return optionFunc(func(cfg *config) {
		cfg.prefetch = max(window, 0)
	})
}

// WithGapThreshold sets the largest separation between two missing ranges
// that are still fetched with one request. Zero disables coalescing.
func WithGapThreshold(n int64) Option {
	return optionFunc(func(cfg *config) {
		cfg.gap = max(n, 0)
	})
}

// WithConcurrency sets how many missing ranges of a single read are fetched
// in parallel.
func WithConcurrency(n int) Option {
	return optionFunc(func(cfg *config) {
		cfg.concurrency = max(n, 1)
	})
}

// WithLogger sets the logger of this File, overriding SetLogger.
func WithLogger(l Logger) Option {
	return optionFunc(func(cfg *config) {
		cfg.logger = l
	})
}

// WithTracerProvider specifies a tracer provider to use for creating a tracer.
// If none is specified, the global provider is used (see [otel.GetTracerProvider]).
func WithTracerProvider(provider trace.TracerProvider) Option {
	return optionFunc(func(cfg *config) {
		if provider != nil {
			cfg.tp = provider
		}
	})
}

// WithContext sets the context used by the methods that take none, such as
// Read, ReadAt, Seek and Size.
func WithContext(ctx context.Context) Option {
	return optionFunc(func(cfg *config) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	})
}

// WithHTTPOptions passes options to the HTTP fetcher created by Open.
func WithHTTPOptions(opts ...httpfetch.Option) Option {
	return optionFunc(func(cfg *config) {
		cfg.httpOpts = append(cfg.httpOpts, opts...)
	})
}
