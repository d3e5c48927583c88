/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// resolver memoizes the total length of the resource. Concurrent callers
// share one probe; failures are not remembered.
type resolver struct {
	probe func(ctx context.Context) (int64, error)
	group singleflight.Group

	mu    sync.Mutex
	size  int64
	known bool
}

func (r *resolver) cached() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size, r.known
}

// seed records a length learned without a probe.
func (r *resolver) seed(size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known {
		r.size, r.known = size, true
	}
}

func (r *resolver) resolve(ctx context.Context) (int64, error) {
	if size, ok := r.cached(); ok {
		return size, nil
	}
	v, err, _ := r.group.Do("size", func() (any, error) {
		if size, ok := r.cached(); ok {
			return size, nil
		}
		size, err := r.probe(ctx)
		if err != nil {
			return int64(0), err
		}
		r.seed(size)
		return size, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}
