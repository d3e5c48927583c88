/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"errors"

	"github.com/ricardobranco777/rangeseek/fetch"
)

// Errors reported by File. Transport failures wrap the fetch sentinels,
// which are re-exported here so callers need not import fetch.
var (
	ErrNotFound         = fetch.ErrNotFound
	ErrUnsupported      = fetch.ErrUnsupported
	ErrRangeUnsupported = fetch.ErrRangeUnsupported
	ErrNetwork          = fetch.ErrNetwork
	ErrConsistencyFault = fetch.ErrConsistencyFault

	ErrInvalidSeek = errors.New("invalid seek")
	ErrClosed      = errors.New("file already closed")
)
