// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/cascades/pkg/util/syncutil"
)

// TestLogScope captures the log output of a test. When the test fails, the
// captured output is replayed through t.Log on Close.
type TestLogScope struct {
	restore func()
	mu      struct {
		syncutil.Mutex
		buf bytes.Buffer
	}
}

// Scope starts capturing log output for the duration of a test. Use as
//
//	defer log.Scope(t).Close(t)
func Scope(t testing.TB) *TestLogScope {
	sc := &TestLogScope{}
	sc.restore = SetOutput(scopeWriter{sc})
	return sc
}

type scopeWriter struct {
	sc *TestLogScope
}

func (w scopeWriter) Write(p []byte) (int, error) {
	w.sc.mu.Lock()
	defer w.sc.mu.Unlock()
	return w.sc.mu.buf.Write(p)
}

// Close restores the previous log output.
func (sc *TestLogScope) Close(t testing.TB) {
	sc.restore()
	if t.Failed() {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		t.Logf("captured log output:\n%s", sc.mu.buf.String())
	}
}

// Output returns the log output captured so far.
func (sc *TestLogScope) Output() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.mu.buf.String()
}
