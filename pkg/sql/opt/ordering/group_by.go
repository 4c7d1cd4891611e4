// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/memo"
)

// streamGroupByCanProvideOrdering returns true if the required ordering is on
// grouping columns and is compatible with the ordering that the stream group
// by relies on: one of the two must be a prefix of the other.
func streamGroupByCanProvideOrdering(
	_ *memo.Memo, expr *memo.GroupExpr, required opt.Ordering,
) bool {
	private := expr.Private().(*opt.GroupByPrivate)
	if !required.ColSet().SubsetOf(private.GroupingCols) {
		return false
	}
	return private.Ordering.Provides(required) || required.Provides(private.Ordering)
}

// streamGroupByBuildChildReqOrdering requires the stronger of the required
// ordering and the stream group by's own ordering. For example, a stream group
// by on (x,y) that relies on +x can pass through a required +x,+y.
func streamGroupByBuildChildReqOrdering(
	_ *memo.Memo, parent *memo.GroupExpr, required opt.Ordering, childIdx int,
) opt.Ordering {
	if childIdx != 0 {
		return nil
	}
	private := parent.Private().(*opt.GroupByPrivate)
	if len(required) > len(private.Ordering) && required.Provides(private.Ordering) {
		return required
	}
	return private.Ordering
}
