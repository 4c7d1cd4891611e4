// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

// DefaultNumSegments is the default number of segments that a distributed
// relation is spread over.
const DefaultNumSegments = 3

// DefaultMaxBindingsPerRule is the default limit on the number of bindings a
// single rule enumerates for one group expression.
const DefaultMaxBindingsPerRule = 64
