// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

func TestLogContextTags(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)

	ctx := logtags.AddTag(context.Background(), "opt", 7)
	ctx = logtags.AddTag(ctx, "n", 1)
	Infof(ctx, "hello %s", "world")
	Warningf(ctx, "careful")

	out := sc.Output()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "I"), lines[0])
	require.Contains(t, lines[0], "log_test.go:")
	require.Contains(t, lines[0], "[opt=7,n1] hello world")
	require.True(t, strings.HasPrefix(lines[1], "W"), lines[1])
}

func TestVerbosity(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)
	defer SetVerbosity(0)

	ctx := context.Background()
	VEventf(ctx, 2, "hidden")
	require.False(t, V(2))
	SetVerbosity(2)
	require.True(t, V(2))
	VEventf(ctx, 2, "shown")
	require.NotContains(t, sc.Output(), "hidden")
	require.Contains(t, sc.Output(), "shown")
}

func TestFormatWithContextTags(t *testing.T) {
	ctx := logtags.AddTag(context.Background(), "phase", "explore")
	require.Equal(t, "[phase=explore] rule fired 3 times",
		FormatWithContextTags(ctx, "rule fired %d times", 3))
}

func TestRedactable(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)
	defer SetRedactable(false)

	SetRedactable(true)
	Infof(context.Background(), "table %s safe %s", "secret", redact.Safe("public"))
	require.Contains(t, sc.Output(), "table ‹secret› safe public")
}

func TestIntercept(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)

	var entries []Entry
	remove := Intercept(func(e Entry) { entries = append(entries, e) })
	Errorf(context.Background(), "bad thing")
	remove()
	Errorf(context.Background(), "not seen")
	require.Len(t, entries, 1)
	require.Equal(t, Severity_ERROR, entries[0].Severity)
	require.Equal(t, "bad thing", entries[0].Message)
}
