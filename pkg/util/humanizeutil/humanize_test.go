// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package humanizeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	require.Equal(t, "1.0 KiB", IBytes(1024))
	require.Equal(t, "-1.0 KiB", IBytes(-1024))
	v, err := ParseBytes("2 KiB")
	require.NoError(t, err)
	require.Equal(t, int64(2048), v)
	v, err = ParseBytes("-2 KiB")
	require.NoError(t, err)
	require.Equal(t, int64(-2048), v)
	_, err = ParseBytes("")
	require.Error(t, err)
}

func TestCount(t *testing.T) {
	require.Equal(t, "0", Count(0.2))
	require.Equal(t, "1,235", Count(1234.6))
	require.Equal(t, "1,000,000", Count(1e6))
}

func TestDuration(t *testing.T) {
	testCases := []struct {
		val time.Duration
		exp string
	}{
		{0, "0µs"},
		{123456, "123µs"},
		{12345678, "12ms"},
		{12345678912, "12.3s"},
		{2 * time.Minute, "2m0s"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.exp, Duration(tc.val))
	}
}
