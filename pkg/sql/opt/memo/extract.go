// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/errors"
)

// ExtractAggInputColumns returns the set of columns the aggregate depends on.
func ExtractAggInputColumns(e *opt.ScalarExpr) opt.ColSet {
	if !e.Op.IsAggregate() {
		panic(errors.AssertionFailedf("not an Aggregate"))
	}
	return e.OuterCols()
}

// HasJoinCondition returns true if the given on filters contain at least one
// equality between a column in leftCols and a column in rightCols.
func HasJoinCondition(leftCols, rightCols opt.ColSet, on opt.FiltersExpr) bool {
	for _, cond := range on {
		if ok, _, _ := ExtractJoinEquality(leftCols, rightCols, cond); ok {
			return true
		}
	}
	return false
}

// ExtractJoinEquality returns true if the given condition is a simple
// equality condition with two variables (e.g. a=b), where one of the
// variables (returned as "left") is in the set of leftCols and the other
// (returned as "right") is in the set of rightCols.
func ExtractJoinEquality(
	leftCols, rightCols opt.ColSet, condition *opt.ScalarExpr,
) (ok bool, left, right opt.ColumnID) {
	a, b, ok := condition.EqualityColumns()
	if !ok {
		return false, 0, 0
	}
	if leftCols.Contains(int(a)) && rightCols.Contains(int(b)) {
		return true, a, b
	}
	if leftCols.Contains(int(b)) && rightCols.Contains(int(a)) {
		return true, b, a
	}
	return false, 0, 0
}

// ExtractJoinEqualityColumns returns pairs of columns (one from the left side,
// one from the right side) which are constrained to be equal in a join.
// Duplicate pairs are returned once.
func ExtractJoinEqualityColumns(
	leftCols, rightCols opt.ColSet, on opt.FiltersExpr,
) (leftEq opt.ColList, rightEq opt.ColList) {
	for _, cond := range on {
		ok, left, right := ExtractJoinEquality(leftCols, rightCols, cond)
		if !ok {
			continue
		}
		dup := false
		for i := range leftEq {
			if leftEq[i] == left && rightEq[i] == right {
				dup = true
				break
			}
		}
		if !dup {
			leftEq = append(leftEq, left)
			rightEq = append(rightEq, right)
		}
	}
	return leftEq, rightEq
}

// ExtractRemainingJoinFilters calculates the remaining ON condition after
// removing equalities that are handled separately. The result is empty if
// there are no remaining conditions. Panics if leftEq and rightEq are not the
// same length.
func ExtractRemainingJoinFilters(on opt.FiltersExpr, leftEq, rightEq opt.ColList) opt.FiltersExpr {
	if len(leftEq) != len(rightEq) {
		panic(errors.AssertionFailedf("leftEq and rightEq have different lengths"))
	}
	if len(leftEq) == 0 {
		return on
	}
	var newFilters opt.FiltersExpr
	for _, cond := range on {
		if a, b, ok := cond.EqualityColumns(); ok {
			found := false
			for j := range leftEq {
				if (a == leftEq[j] && b == rightEq[j]) ||
					(a == rightEq[j] && b == leftEq[j]) {
					found = true
					break
				}
			}
			if found {
				// Skip this condition.
				continue
			}
		}
		newFilters = append(newFilters, cond)
	}
	return newFilters
}
