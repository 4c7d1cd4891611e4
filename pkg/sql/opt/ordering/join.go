// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
)

// leftSideCanProvideOrdering is used by the hash and nested loop joins, which
// stream their left input and emit the matches of each left row before
// moving to the next one. They preserve any ordering on left columns.
func leftSideCanProvideOrdering(mem *memo.Memo, expr *memo.GroupExpr, required opt.Ordering) bool {
	leftCols := mem.Group(expr.Child(0)).Relational().OutputCols
	return required.ColSet().SubsetOf(leftCols)
}

func leftSideBuildChildReqOrdering(
	_ *memo.Memo, _ *memo.GroupExpr, required opt.Ordering, childIdx int,
) opt.Ordering {
	if childIdx != 0 {
		return nil
	}
	return required
}

// mergeJoinCanProvideOrdering returns true if the required ordering is a
// prefix of the ordering that the merge join consumes from its left input.
// For inner joins the right input ordering is equivalent, since the merged
// columns are equal in every output row.
func mergeJoinCanProvideOrdering(_ *memo.Memo, expr *memo.GroupExpr, required opt.Ordering) bool {
	private := expr.Private().(*opt.JoinPrivate)
	if private.LeftOrdering.Provides(required) {
		return true
	}
	return private.JoinType == opt.InnerJoinOp && private.RightOrdering.Provides(required)
}

func mergeJoinBuildChildReqOrdering(
	_ *memo.Memo, parent *memo.GroupExpr, _ opt.Ordering, childIdx int,
) opt.Ordering {
	private := parent.Private().(*opt.JoinPrivate)
	switch childIdx {
	case 0:
		return private.LeftOrdering
	case 1:
		return private.RightOrdering
	}
	return nil
}

// mergeJoinBuildProvided returns the left input ordering, or the right input
// ordering for an inner join whose left merge columns are not output.
func mergeJoinBuildProvided(
	mem *memo.Memo, expr *memo.GroupExpr, childProvided []opt.Ordering,
) opt.Ordering {
	private := expr.Private().(*opt.JoinPrivate)
	outCols := mem.Group(expr.Group()).Relational().OutputCols
	if len(childProvided) > 0 && private.LeftOrdering.ColSet().SubsetOf(outCols) {
		return childProvided[0]
	}
	if private.JoinType == opt.InnerJoinOp && len(childProvided) > 1 {
		return childProvided[1]
	}
	return nil
}
