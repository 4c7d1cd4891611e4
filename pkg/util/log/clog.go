// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is a small leveled logger with context tags. Every call takes
// a context.Context whose logtags are prepended to the message.
package log

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/cascades/pkg/util/syncutil"
)

// loggingT is the process-wide logger state.
type loggingT struct {
	mu struct {
		syncutil.Mutex
		out io.Writer
		// interceptors receive every entry that passes the severity filter.
		interceptors []func(Entry)
	}
	verbosity  atomic.Int32
	severity   atomic.Int32
	redactable atomic.Bool
	exitFn     func(int)
}

var logging = func() *loggingT {
	l := &loggingT{exitFn: os.Exit}
	l.mu.out = os.Stderr
	l.severity.Store(int32(Severity_INFO))
	return l
}()

func (l *loggingT) minSeverity() Severity {
	return Severity(l.severity.Load())
}

func (l *loggingT) outputLogEntry(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, fn := range l.mu.interceptors {
		fn(e)
	}
	if l.mu.out != nil {
		_, _ = l.mu.out.Write(e.Format())
	}
	if e.Severity == Severity_FATAL {
		l.exitFn(255)
	}
}

// SetOutput redirects log output and returns a function restoring the
// previous writer. A nil writer discards output.
func SetOutput(w io.Writer) (restore func()) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	prev := logging.mu.out
	logging.mu.out = w
	return func() {
		logging.mu.Lock()
		defer logging.mu.Unlock()
		logging.mu.out = prev
	}
}

// SetMinSeverity sets the least severe level that is written.
func SetMinSeverity(s Severity) {
	logging.severity.Store(int32(s))
}

// SetVerbosity sets the level up to which V and VEventf are enabled.
func SetVerbosity(level int32) {
	logging.verbosity.Store(level)
}

// SetRedactable controls whether messages keep redaction markers around
// unsafe arguments.
func SetRedactable(v bool) {
	logging.redactable.Store(v)
}

// Intercept registers fn to receive all log entries and returns a function
// that removes it.
func Intercept(fn func(Entry)) (remove func()) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	logging.mu.interceptors = append(logging.mu.interceptors, fn)
	idx := len(logging.mu.interceptors) - 1
	return func() {
		logging.mu.Lock()
		defer logging.mu.Unlock()
		logging.mu.interceptors[idx] = func(Entry) {}
	}
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return VDepth(level, 1)
}

// VDepth reports whether verbosity at the call site is at least the requested
// level.
func VDepth(level int32, depth int) bool {
	return logging.verbosity.Load() >= level
}

// Infof logs to the INFO log.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, 1, format, args)
}

// Info logs to the INFO log.
func Info(ctx context.Context, msg string) {
	addStructured(ctx, Severity_INFO, 1, "", []interface{}{msg})
}

// Warningf logs to the WARNING and INFO logs.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_WARNING, 1, format, args)
}

// Errorf logs to the ERROR, WARNING, and INFO logs.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_ERROR, 1, format, args)
}

// Fatalf logs to the FATAL log and then exits the process.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_FATAL, 1, format, args)
}

// InfofDepth logs to the INFO log, attributing the entry to the caller
// depth frames up the stack.
func InfofDepth(ctx context.Context, depth int, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, depth+1, format, args)
}

// VEventf logs the formatted message at INFO severity if the verbosity is at
// least the given level.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if VDepth(level, 1) {
		addStructured(ctx, Severity_INFO, 1, format, args)
	}
}

// VEvent logs the message at INFO severity if the verbosity is at least the
// given level.
func VEvent(ctx context.Context, level int32, msg string) {
	if VDepth(level, 1) {
		addStructured(ctx, Severity_INFO, 1, "", []interface{}{msg})
	}
}
