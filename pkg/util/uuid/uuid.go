// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package uuid generates the random identifiers that tag optimizations in
// logs and traces.
package uuid

import "github.com/google/uuid"

// UUID is a 128-bit identifier.
type UUID = uuid.UUID

// Nil is the zero UUID.
var Nil = uuid.Nil

// MakeV4 returns a new random (version 4) UUID.
func MakeV4() UUID {
	return uuid.New()
}

// ShortString returns the first 8 hex digits of the UUID, which is enough to
// tell apart the optimizations in a log.
func ShortString(u UUID) string {
	return u.String()[:8]
}
