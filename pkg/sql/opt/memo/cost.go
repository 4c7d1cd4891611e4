// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"math"
)

// Cost is the best-effort approximation of the actual cost of executing a
// particular operator tree.
type Cost struct {
	C float64
}

// MaxCost is the maximum possible estimated cost. It is the cost of a
// (group, required properties) pair for which no plan exists.
var MaxCost = Cost{C: math.Inf(+1)}

// Less returns true if this cost is lower than the given cost.
func (c Cost) Less(other Cost) bool {
	// Two plans with the same cost can have slightly different floating point
	// results (e.g. same subcosts being added up in a different order). So we
	// treat plans with very similar cost as equal.
	//
	// We use "units of least precision" for similarity: this is the number of
	// representable floating point numbers in-between the two values. This is
	// better than a fixed epsilon because the allowed error is proportional to
	// the magnitude of the numbers. Because the mantissa is in the low bits, we
	// can just use the bit representations as integers.
	const ulpTolerance = 1000
	return math.Float64bits(c.C)+ulpTolerance <= math.Float64bits(other.C)
}

// Add adds the other cost to this cost.
func (c *Cost) Add(other Cost) {
	c.C += other.C
}

// IsMax returns true for MaxCost.
func (c Cost) IsMax() bool {
	return math.IsInf(c.C, +1)
}

func (c Cost) String() string {
	if c.IsMax() {
		return "inf"
	}
	return fmt.Sprintf("%.2f", c.C)
}
