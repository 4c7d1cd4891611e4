// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package ordering derives, for each physical operator, whether it can
// provide a required row ordering, which orderings it requires of its
// children, and which ordering its output actually has.
package ordering

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
	"github.com/cockroachdb/cascades/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
)

// CanProvide returns true if the given physical expression returns rows that
// satisfy the required ordering, possibly by passing the requirement through
// to its children.
func CanProvide(mem *memo.Memo, expr *memo.GroupExpr, required opt.Ordering) bool {
	if required.Empty() {
		return true
	}
	if buildutil.Invariants {
		checkRequired(mem, expr.Group(), required)
	}
	return funcMap[expr.Op()].canProvideOrdering(mem, expr, required)
}

// BuildChildRequired returns the ordering that must be required of the given
// child in order to satisfy the required ordering. Some operators require an
// ordering of their children even when none is required of them. Can only be
// called if CanProvide is true for the required ordering.
func BuildChildRequired(
	mem *memo.Memo, parent *memo.GroupExpr, required opt.Ordering, childIdx int,
) opt.Ordering {
	result := funcMap[parent.Op()].buildChildReqOrdering(mem, parent, required, childIdx)
	if buildutil.Invariants && !result.Empty() {
		checkRequired(mem, parent.Child(childIdx), result)
	}
	return result
}

// BuildProvided returns the ordering that the expression's output has, given
// the orderings provided by its children. Columns that the expression does
// not output are trimmed from the result.
func BuildProvided(mem *memo.Memo, expr *memo.GroupExpr, childProvided []opt.Ordering) opt.Ordering {
	provided := funcMap[expr.Op()].buildProvidedOrdering(mem, expr, childProvided)
	return provided.Project(mem.Group(expr.Group()).Relational().OutputCols)
}

type funcs struct {
	canProvideOrdering func(mem *memo.Memo, expr *memo.GroupExpr, required opt.Ordering) bool

	buildChildReqOrdering func(
		mem *memo.Memo, parent *memo.GroupExpr, required opt.Ordering, childIdx int,
	) opt.Ordering

	buildProvidedOrdering func(
		mem *memo.Memo, expr *memo.GroupExpr, childProvided []opt.Ordering,
	) opt.Ordering
}

var funcMap [opt.NumOperators]funcs

func init() {
	for op := opt.Operator(0); op < opt.NumOperators; op++ {
		funcMap[op] = funcs{
			canProvideOrdering:    canNeverProvideOrdering,
			buildChildReqOrdering: noChildReqOrdering,
			buildProvidedOrdering: noProvidedOrdering,
		}
	}
	funcMap[opt.IndexScanOp] = funcs{
		canProvideOrdering:    indexScanCanProvideOrdering,
		buildChildReqOrdering: noChildReqOrdering,
		buildProvidedOrdering: indexScanBuildProvided,
	}
	funcMap[opt.FilterOp] = funcs{
		canProvideOrdering:    canAlwaysPassThroughOrdering,
		buildChildReqOrdering: passThroughChildReqOrdering,
		buildProvidedOrdering: firstChildProvidedOrdering,
	}
	funcMap[opt.PhysProjectOp] = funcs{
		canProvideOrdering:    projectCanProvideOrdering,
		buildChildReqOrdering: passThroughChildReqOrdering,
		buildProvidedOrdering: firstChildProvidedOrdering,
	}
	funcMap[opt.PhysLimitOp] = funcs{
		canProvideOrdering:    canAlwaysPassThroughOrdering,
		buildChildReqOrdering: passThroughChildReqOrdering,
		buildProvidedOrdering: firstChildProvidedOrdering,
	}
	funcMap[opt.HashJoinOp] = funcs{
		canProvideOrdering:    leftSideCanProvideOrdering,
		buildChildReqOrdering: leftSideBuildChildReqOrdering,
		buildProvidedOrdering: firstChildProvidedOrdering,
	}
	funcMap[opt.NestedLoopJoinOp] = funcs{
		canProvideOrdering:    leftSideCanProvideOrdering,
		buildChildReqOrdering: leftSideBuildChildReqOrdering,
		buildProvidedOrdering: firstChildProvidedOrdering,
	}
	funcMap[opt.MergeJoinOp] = funcs{
		canProvideOrdering:    mergeJoinCanProvideOrdering,
		buildChildReqOrdering: mergeJoinBuildChildReqOrdering,
		buildProvidedOrdering: mergeJoinBuildProvided,
	}
	funcMap[opt.StreamGroupByOp] = funcs{
		canProvideOrdering:    streamGroupByCanProvideOrdering,
		buildChildReqOrdering: streamGroupByBuildChildReqOrdering,
		buildProvidedOrdering: firstChildProvidedOrdering,
	}
}

func canNeverProvideOrdering(*memo.Memo, *memo.GroupExpr, opt.Ordering) bool {
	return false
}

func canAlwaysPassThroughOrdering(*memo.Memo, *memo.GroupExpr, opt.Ordering) bool {
	return true
}

func noChildReqOrdering(*memo.Memo, *memo.GroupExpr, opt.Ordering, int) opt.Ordering {
	return nil
}

func passThroughChildReqOrdering(
	_ *memo.Memo, _ *memo.GroupExpr, required opt.Ordering, childIdx int,
) opt.Ordering {
	if childIdx != 0 {
		return nil
	}
	return required
}

func noProvidedOrdering(*memo.Memo, *memo.GroupExpr, []opt.Ordering) opt.Ordering {
	return nil
}

// firstChildProvidedOrdering returns the ordering provided by the first child.
// It is used by operators that preserve the order of their input.
func firstChildProvidedOrdering(
	_ *memo.Memo, _ *memo.GroupExpr, childProvided []opt.Ordering,
) opt.Ordering {
	if len(childProvided) == 0 {
		return nil
	}
	return childProvided[0]
}

// checkRequired runs sanity checks on the ordering required of a group.
func checkRequired(mem *memo.Memo, group memo.GroupID, required opt.Ordering) {
	cols := mem.Group(group).Relational().OutputCols
	if !required.ColSet().SubsetOf(cols) {
		panic(errors.AssertionFailedf(
			"required ordering %s refers to non-output columns of G%d (%s)", required, group, cols))
	}
}
