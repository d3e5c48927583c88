/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ricardobranco777/rangeseek/internal/logutil"
)

// Logger is a minimal interface for debug/error logging.
type Logger = logutil.Logger

// LogFunc is a function type that implements Logger.
type LogFunc = logutil.LogFunc

// StdLogger returns a simple default logger.
func StdLogger() Logger { return logutil.StdLogger() }

// NoopLogger discards all logs.
func NoopLogger() Logger { return logutil.NoopLogger() }

// LogrusLogger adapts a logrus logger. Arguments are key/value pairs.
func LogrusLogger(l logrus.FieldLogger) Logger { return logutil.Logrus(l) }

var logger atomic.Pointer[Logger]

// SetLogger sets the logger used by files opened without WithLogger.
// If nil, no logs are emitted.
func SetLogger(l Logger) {
	if l == nil {
		logger.Store(nil)
		return
	}
	logger.Store(&l)
}

func getLogger() Logger {
	if l := logger.Load(); l != nil {
		return *l
	}
	return logutil.NoopLogger()
}
