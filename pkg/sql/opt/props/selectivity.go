// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import "math"

// epsilon is the smallest selectivity. It keeps row count estimates above
// zero, since stale statistics can make a zero estimate badly wrong.
const epsilon = 1e-10

// Selectivity is the fraction of rows that a predicate lets through. It is
// always in the range [epsilon, 1].
type Selectivity struct {
	selectivity float64
}

// OneSelectivity is the selectivity of a predicate that keeps every row.
var OneSelectivity = Selectivity{selectivity: 1}

// ZeroSelectivity is the smallest representable selectivity.
var ZeroSelectivity = Selectivity{selectivity: epsilon}

// MakeSelectivity returns the selectivity clamped to [epsilon, 1].
func MakeSelectivity(sel float64) Selectivity {
	return Selectivity{selectivity: selectivityInRange(sel)}
}

// MakeSelectivityFromFraction returns num/denom as a selectivity. A zero
// denominator yields OneSelectivity.
func MakeSelectivityFromFraction(num, denom float64) Selectivity {
	if denom == 0 {
		return OneSelectivity
	}
	return MakeSelectivity(num / denom)
}

// AsFloat returns the selectivity as a float64.
func (s Selectivity) AsFloat() float64 {
	return s.selectivity
}

// Multiply multiplies the selectivity by another one.
func (s *Selectivity) Multiply(other Selectivity) {
	s.selectivity = selectivityInRange(s.selectivity * other.selectivity)
}

// Add adds another selectivity, e.g. for disjunctions of independent
// predicates.
func (s *Selectivity) Add(other Selectivity) {
	s.selectivity = selectivityInRange(s.selectivity + other.selectivity)
}

// MinSelectivity returns the smaller of two selectivities.
func MinSelectivity(a, b Selectivity) Selectivity {
	if a.selectivity < b.selectivity {
		return a
	}
	return b
}

func selectivityInRange(sel float64) float64 {
	return math.Max(epsilon, math.Min(sel, 1))
}
