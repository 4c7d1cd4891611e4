// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package tracing wraps OpenTelemetry spans with the small API used across
// the code base: child spans that are only created when the caller is
// traced, structured events and redacted error tags.
package tracing

import (
	"context"

	"github.com/cockroachdb/redact"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies the spans created by this package.
const instrumentationName = "github.com/cockroachdb/cascades"

// Span is a traced operation. A nil *Span is valid and ignores every call,
// so that untraced code paths do not need to check for tracing.
type Span struct {
	sp trace.Span
}

// StartSpan starts a root span using the given provider, and returns a
// context that carries it.
func StartSpan(
	ctx context.Context, tp trace.TracerProvider, opName string,
) (context.Context, *Span) {
	ctx, sp := tp.Tracer(instrumentationName).Start(ctx, opName)
	return ctx, &Span{sp: sp}
}

// ChildSpan opens a span as a child of the span in the context, if the
// context has a recording span. Otherwise the context is returned as is,
// along with a nil span.
func ChildSpan(ctx context.Context, opName string) (context.Context, *Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.IsRecording() {
		return ctx, nil
	}
	ctx, sp := parent.TracerProvider().Tracer(instrumentationName).Start(ctx, opName)
	return ctx, &Span{sp: sp}
}

// SpanFromContext returns the recording span in the context, or nil.
func SpanFromContext(ctx context.Context) *Span {
	sp := trace.SpanFromContext(ctx)
	if !sp.IsRecording() {
		return nil
	}
	return &Span{sp: sp}
}

// IsRecording returns true if events on the span are kept.
func (s *Span) IsRecording() bool {
	return s != nil && s.sp.IsRecording()
}

// SetTag sets an attribute on the span.
func (s *Span) SetTag(key string, value attribute.Value) {
	if s == nil {
		return
	}
	s.sp.SetAttributes(attribute.KeyValue{Key: attribute.Key(key), Value: value})
}

// Record adds a structured event to the span.
func (s *Span) Record(event string, attrs ...attribute.KeyValue) {
	if s == nil {
		return
	}
	s.sp.AddEvent(event, trace.WithAttributes(attrs...))
}

// RecordError tags the span with the redacted form of the error.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.SetTag("error", attribute.StringValue(RedactAndTruncateError(err)))
}

// Finish ends the span.
func (s *Span) Finish() {
	if s == nil {
		return
	}
	s.sp.End()
}

// FinishSpan ends the span, which may be nil.
func FinishSpan(s *Span) {
	s.Finish()
}

// RedactAndTruncateError returns the redacted message of the error, cut to
// a length suitable for a span tag.
func RedactAndTruncateError(err error) string {
	maxErrLength := 250
	redactedErr := string(redact.Sprintf("%v", err).Redact())
	if len(redactedErr) < maxErrLength {
		maxErrLength = len(redactedErr)
	}
	return redactedErr[:maxErrLength]
}
