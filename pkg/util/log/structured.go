// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/petermattis/goid"
)

// FormatWithContextTags formats the string and prepends the context
// tags.
//
// Redaction markers are *not* inserted. The resulting
// string is generally unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, true /* brackets */, &buf)
	renderArgs(false /* redactable */, &buf, format, args...)
	return buf.String()
}

// formatTags appends the context's log tags to buf, e.g. "[opt=1,n3] ".
func formatTags(ctx context.Context, brackets bool, buf *strings.Builder) {
	tags := logtags.FromContext(ctx)
	if tags == nil {
		return
	}
	if brackets {
		buf.WriteByte('[')
	}
	for i, t := range tags.Get() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(t.Key())
		if v := t.Value(); v != nil {
			if len(t.Key()) > 1 {
				buf.WriteByte('=')
			}
			fmt.Fprint(buf, v)
		}
	}
	if brackets {
		buf.WriteString("] ")
	}
}

// renderArgs formats the message. When redactable is set, unsafe arguments
// are enclosed in redaction markers.
func renderArgs(redactable bool, buf *strings.Builder, format string, args ...interface{}) {
	var msg redact.RedactableString
	if len(format) == 0 {
		msg = redact.Sprint(args...)
	} else {
		msg = redact.Sprintf(format, args...)
	}
	if redactable {
		buf.WriteString(string(msg))
	} else {
		buf.WriteString(msg.StripMarkers())
	}
}

// Entry is a single formatted log line together with its metadata.
type Entry struct {
	Severity  Severity
	Time      time.Time
	Goroutine int64
	File      string
	Line      int
	Message   string
}

// MakeEntry creates a log entry for the caller at the given depth.
func MakeEntry(
	ctx context.Context, sev Severity, depth int, redactable bool, format string, args ...interface{},
) Entry {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		file, line = "???", 1
	}
	var buf strings.Builder
	formatTags(ctx, true /* brackets */, &buf)
	renderArgs(redactable, &buf, format, args...)
	return Entry{
		Severity:  sev,
		Time:      time.Now(),
		Goroutine: goid.Get(),
		File:      filepath.Base(file),
		Line:      line,
		Message:   buf.String(),
	}
}

// Format renders the entry in the crdb-v1 style:
//
//	I251016 14:03:05.123456 42 xform/optimizer.go:120  [opt=1] message
func (e Entry) Format() []byte {
	var buf bytes.Buffer
	buf.WriteByte(e.Severity.char())
	buf.WriteString(e.Time.UTC().Format("060102 15:04:05.000000"))
	fmt.Fprintf(&buf, " %d %s:%d  %s\n", e.Goroutine, e.File, e.Line, e.Message)
	return buf.Bytes()
}

// addStructured creates a structured log entry to be written to the
// configured output.
func addStructured(
	ctx context.Context, sev Severity, depth int, format string, args []interface{},
) {
	if ctx == nil {
		panic("nil context")
	}
	if sev < logging.minSeverity() {
		return
	}
	entry := MakeEntry(ctx, sev, depth+1, logging.redactable.Load(), format, args...)
	logging.outputLogEntry(entry)
}
