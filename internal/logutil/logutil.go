/* SPDX-License-Identifier: BSD-2-Clause */

package logutil

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a minimal interface for debug/error logging.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// LogFunc is a function type that implements Logger.
type LogFunc func(level, msg string, args ...any)

func (f LogFunc) Debug(msg string, args ...any) { f("DEBUG", msg, args...) }
func (f LogFunc) Error(msg string, args ...any) { f("ERROR", msg, args...) }

// StdLogger returns a simple default logger.
func StdLogger() Logger {
	return LogFunc(func(level, msg string, args ...any) {
		switch len(args) {
		case 0:
			log.Printf("%s: %s", level, msg)
		case 1:
			log.Printf("%s: %s %v", level, msg, args[0])
		default:
			log.Printf("%s: %s %s", level, msg, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
		}
	})
}

// NoopLogger discards all logs.
func NoopLogger() Logger { return LogFunc(func(string, string, ...any) {}) }

// Logrus adapts a logrus logger. Arguments are passed as alternating
// key/value pairs and become logrus fields; a trailing odd argument is
// logged under "arg".
func Logrus(l logrus.FieldLogger) Logger {
	return LogFunc(func(level, msg string, args ...any) {
		entry := l.WithFields(fields(args))
		if level == "ERROR" {
			entry.Error(msg)
			return
		}
		entry.Debug(msg)
	})
}

func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			f["arg"] = args[i]
			break
		}
		f[fmt.Sprint(args[i])] = args[i+1]
	}
	return f
}

// Or returns l, or NoopLogger if l is nil.
func Or(l Logger) Logger {
	if l == nil {
		return NoopLogger()
	}
	return l
}

// DumpRequest logs an outgoing request at debug level.
func DumpRequest(l Logger, req *http.Request) {
	if dump, err := httputil.DumpRequestOut(req, false); err == nil {
		l.Debug(string(dump))
	} else {
		l.Error("Failed to dump request", err)
	}
}

// DumpResponse logs the status line and headers of a response.
func DumpResponse(l Logger, resp *http.Response) {
	if dump, err := httputil.DumpResponse(resp, false); err == nil {
		l.Debug(string(dump))
	} else {
		l.Error("Failed to dump response", err)
	}
}
